package browser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"grokcapture/internal/pipeline"
	"grokcapture/internal/prompt"
	"grokcapture/internal/watcher"
)

// pageImage is an image as described by the in-page scripts.
type pageImage struct {
	Ref    string     `json:"ref"`
	Levels [][]string `json:"levels"`
}

func (p pageImage) image() watcher.Image {
	return watcher.Image{Ref: p.Ref, Container: prompt.FromLevels(p.Levels)}
}

func decodeImages(raw []byte) ([]watcher.Image, error) {
	var imgs []pageImage
	if err := json.Unmarshal(raw, &imgs); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	out := make([]watcher.Image, 0, len(imgs))
	for _, img := range imgs {
		if img.Ref == "" {
			continue
		}
		out = append(out, img.image())
	}
	return out, nil
}

func decodeBatches(raw []byte) ([]watcher.Batch, error) {
	var batches [][]pageImage
	if err := json.Unmarshal(raw, &batches); err != nil {
		return nil, fmt.Errorf("decode batches: %w", err)
	}
	out := make([]watcher.Batch, 0, len(batches))
	for _, b := range batches {
		batch := make(watcher.Batch, 0, len(b))
		for _, img := range b {
			if img.Ref != "" {
				batch = append(batch, img.image())
			}
		}
		if len(batch) > 0 {
			out = append(out, batch)
		}
	}
	return out, nil
}

type fetchResult struct {
	Status int    `json:"status"`
	Data   string `json:"data"`
}

func decodeFetch(ref string, raw []byte) ([]byte, error) {
	var res fetchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode fetch result: %w", err)
	}
	if res.Status < 200 || res.Status > 299 {
		return nil, &pipeline.StatusError{URL: ref, Code: res.Status}
	}
	data, err := base64.StdEncoding.DecodeString(res.Data)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return data, nil
}
