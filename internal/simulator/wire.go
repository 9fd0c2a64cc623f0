// Package simulator bridges env.Environment over gRPC so an agent can drive
// a simulator running in another process.
package simulator

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cartridge/gather/internal/env"
)

// ResetOptions is sent with every Reset and selects how the remote
// environment is built.
type ResetOptions struct {
	MaxSteps int
	GUI      bool
	Width    int
	Height   int
}

func (o ResetOptions) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"max_steps": o.MaxSteps,
		"gui":       o.GUI,
		"width":     o.Width,
		"height":    o.Height,
	})
}

func resetOptionsFromStruct(s *structpb.Struct) ResetOptions {
	f := s.GetFields()
	return ResetOptions{
		MaxSteps: int(f["max_steps"].GetNumberValue()),
		GUI:      f["gui"].GetBoolValue(),
		Width:    int(f["width"].GetNumberValue()),
		Height:   int(f["height"].GetNumberValue()),
	}
}

// encodeState packs each camera image as {width, height, rgb}.
func encodeState(state env.State) ([]interface{}, error) {
	images := make([]interface{}, 0, len(state))
	for i, img := range state {
		if img == nil {
			return nil, fmt.Errorf("camera %d has no image", i)
		}
		b := img.Bounds()
		rgb := make([]byte, 0, b.Dx()*b.Dy()*3)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				rgb = append(rgb, c.R, c.G, c.B)
			}
		}
		images = append(images, map[string]interface{}{
			"width":  b.Dx(),
			"height": b.Dy(),
			"rgb":    rgb,
		})
	}
	return images, nil
}

func decodeState(v *structpb.Value) (env.State, error) {
	var state env.State
	list := v.GetListValue().GetValues()
	if len(list) != env.NumCameras {
		return state, fmt.Errorf("expected %d camera images, got %d", env.NumCameras, len(list))
	}
	for i, item := range list {
		f := item.GetStructValue().GetFields()
		w := int(f["width"].GetNumberValue())
		h := int(f["height"].GetNumberValue())
		rgb, err := base64.StdEncoding.DecodeString(f["rgb"].GetStringValue())
		if err != nil {
			return state, fmt.Errorf("camera %d: %w", i, err)
		}
		if w <= 0 || h <= 0 || len(rgb) != w*h*3 {
			return state, fmt.Errorf("camera %d: %d bytes for %dx%d image", i, len(rgb), w, h)
		}
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for p := 0; p < w*h; p++ {
			copy(img.Pix[p*4:p*4+3], rgb[p*3:p*3+3])
			img.Pix[p*4+3] = 0xff
		}
		state[i] = img
	}
	return state, nil
}

func floatsToList(values []float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func listToFloats(v *structpb.Value) []float64 {
	values := v.GetListValue().GetValues()
	out := make([]float64, len(values))
	for i, item := range values {
		out[i] = item.GetNumberValue()
	}
	return out
}

func encodeStep(res env.StepResult) (*structpb.Struct, error) {
	images, err := encodeState(res.State)
	if err != nil {
		return nil, err
	}
	info := make(map[string]interface{}, len(res.Info))
	for k, v := range res.Info {
		info[k] = v
	}
	return structpb.NewStruct(map[string]interface{}{
		"state":  images,
		"reward": res.Reward,
		"done":   res.Done,
		"info":   info,
	})
}

func decodeStep(s *structpb.Struct) (env.StepResult, error) {
	f := s.GetFields()
	state, err := decodeState(f["state"])
	if err != nil {
		return env.StepResult{}, err
	}
	return env.StepResult{
		State:  state,
		Reward: f["reward"].GetNumberValue(),
		Done:   f["done"].GetBoolValue(),
		Info:   env.Info(f["info"].GetStructValue().AsMap()),
	}, nil
}
