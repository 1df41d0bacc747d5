package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nal(typ byte, payload ...byte) []byte {
	return append([]byte{typ & 0x1F}, payload...)
}

func TestSplitAnnexBThreeAndFourByteStartCodes(t *testing.T) {
	data := append([]byte{0, 0, 1}, nal(h264NALTypeSPS, 0xAA)...)
	data = append(data, []byte{0, 0, 0, 1}...)
	data = append(data, nal(h264NALTypePPS, 0xBB)...)

	nalus := splitAnnexB(data)
	require.Len(t, nalus, 2)
	assert.EqualValues(t, h264NALTypeSPS, nalus[0][0]&0x1F)
	assert.EqualValues(t, h264NALTypePPS, nalus[1][0]&0x1F)
}

func TestIsKeyframeDetectsIDR(t *testing.T) {
	nalus := [][]byte{nal(1, 0x01), nal(h264NALTypeIDR, 0x02)}
	assert.True(t, isKeyframe(nalus))

	nonKey := [][]byte{nal(1, 0x01)}
	assert.False(t, isKeyframe(nonKey))
}

func TestPrependToKeyframeAddsCachedParams(t *testing.T) {
	h := newParamHelper()
	h.Observe([][]byte{nal(h264NALTypeSPS, 1), nal(h264NALTypePPS, 2)})

	keyframe := [][]byte{nal(h264NALTypeIDR, 9)}
	out := h.PrependToKeyframe(keyframe)

	require.Len(t, out, 3)
	assert.EqualValues(t, h264NALTypeSPS, out[0][0]&0x1F)
	assert.EqualValues(t, h264NALTypePPS, out[1][0]&0x1F)
	assert.EqualValues(t, h264NALTypeIDR, out[2][0]&0x1F)
}

func TestPrependToKeyframeSkipsWhenParamsAlreadyPresent(t *testing.T) {
	h := newParamHelper()
	h.Observe([][]byte{nal(h264NALTypeSPS, 1), nal(h264NALTypePPS, 2)})

	keyframe := [][]byte{nal(h264NALTypeSPS, 1), nal(h264NALTypePPS, 2), nal(h264NALTypeIDR, 9)}
	out := h.PrependToKeyframe(keyframe)

	assert.Len(t, out, 3)
}

func TestPrependToKeyframeNoopWithoutCachedParams(t *testing.T) {
	h := newParamHelper()
	keyframe := [][]byte{nal(h264NALTypeIDR, 9)}
	out := h.PrependToKeyframe(keyframe)
	assert.Equal(t, keyframe, out)
}

func TestPrependToKeyframeLeavesNonKeyframeAlone(t *testing.T) {
	h := newParamHelper()
	h.Observe([][]byte{nal(h264NALTypeSPS, 1), nal(h264NALTypePPS, 2)})

	nonKey := [][]byte{nal(1, 9)}
	out := h.PrependToKeyframe(nonKey)
	assert.Len(t, out, 1)
}
