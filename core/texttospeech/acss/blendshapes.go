package acss

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/koscakluka/ema-acss/core/texttospeech"
)

// The service sends blendshape frames at 60 fps.
const frameTickMs = 1000.0 / 60.0

// blendShapeKeys is the order in which the service lists blendshape weights.
var blendShapeKeys = [55]string{
	"eyeBlinkLeft", "eyeLookDownLeft", "eyeLookInLeft", "eyeLookOutLeft", "eyeLookUpLeft", "eyeSquintLeft", "eyeWideLeft",
	"eyeBlinkRight", "eyeLookDownRight", "eyeLookInRight", "eyeLookOutRight", "eyeLookUpRight", "eyeSquintRight", "eyeWideRight",
	"jawForward", "jawLeft", "jawRight", "jawOpen", "mouthClose", "mouthFunnel", "mouthPucker", "mouthLeft", "mouthRight",
	"mouthSmileLeft", "mouthSmileRight", "mouthFrownLeft", "mouthFrownRight", "mouthDimpleLeft", "mouthDimpleRight",
	"mouthStretchLeft", "mouthStretchRight", "mouthRollLower", "mouthRollUpper", "mouthShrugLower", "mouthShrugUpper",
	"mouthPressLeft", "mouthPressRight", "mouthLowerDownLeft", "mouthLowerDownRight", "mouthUpperUpLeft", "mouthUpperUpRight",
	"browDownLeft", "browDownRight", "browInnerUp", "browOuterUpLeft", "browOuterUpRight", "cheekPuff", "cheekSquintLeft",
	"cheekSquintRight", "noseSneerLeft", "noseSneerRight", "tongueOut", "headRoll", "leftEyeRoll", "rightEyeRoll",
}

// BlendShapeKeys returns the blendshape names in wire order.
func BlendShapeKeys() [55]string {
	return blendShapeKeys
}

type animationChunk struct {
	FrameIndex  int         `json:"FrameIndex"`
	BlendShapes [][]float32 `json:"BlendShapes"`
}

func decodeAnimationChunk(raw string) (texttospeech.BlendShapeVisemesChunk, error) {
	var chunk animationChunk
	if err := sonic.UnmarshalString(raw, &chunk); err != nil {
		return texttospeech.BlendShapeVisemesChunk{}, fmt.Errorf("%w: animation chunk: %w", ErrParseJSON, err)
	}

	startMs := float64(chunk.FrameIndex) * frameTickMs
	frames := make([]texttospeech.BlendShapeVisemeFrame, 0, len(chunk.BlendShapes))
	for i, weights := range chunk.BlendShapes {
		if len(weights) > len(blendShapeKeys) {
			return texttospeech.BlendShapeVisemesChunk{}, fmt.Errorf("%w: frame %d has %d weights",
				ErrBlendShapeOverflow, chunk.FrameIndex+i, len(weights))
		}

		blendShapes := make([]texttospeech.BlendShape, len(weights))
		for j, weight := range weights {
			blendShapes[j] = texttospeech.BlendShape{Key: blendShapeKeys[j], Weight: weight}
		}
		frames = append(frames, texttospeech.BlendShapeVisemeFrame{
			OffsetMs:    startMs + float64(i)*frameTickMs,
			BlendShapes: blendShapes,
		})
	}

	return texttospeech.BlendShapeVisemesChunk{Frames: frames}, nil
}
