package backend

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/species"
)

func shapeError(endpoint, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("endpoint", endpoint).
		Build()
}

func decodeUpload(body []byte) (*UploadResult, error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, shapeError(endpointUpload, "upload response is not a JSON object: %v", err)
	}

	imageURL, err := obj.GetString("imageUrl")
	if err != nil || strings.TrimSpace(imageURL) == "" {
		return nil, shapeError(endpointUpload, "upload response has no imageUrl")
	}
	u, err := url.Parse(imageURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, shapeError(endpointUpload, "upload response imageUrl %q is not an absolute URL", imageURL)
	}

	result := &UploadResult{ImageURL: imageURL, Metadata: map[string]string{}}
	if meta, err := obj.GetObject("metadata"); err == nil {
		for key, value := range meta.Map() {
			result.Metadata[key] = stringify(value)
		}
	}
	return result, nil
}

// decodeLabel accepts a JSON string, an object carrying the label, or plain text.
func decodeLabel(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", shapeError(endpointClassify, "classifier returned an empty body")
	}

	value, err := jason.NewValueFromBytes(body)
	if err != nil {
		return text, nil
	}
	if s, err := value.String(); err == nil {
		return nonEmptyLabel(s)
	}
	if obj, err := value.Object(); err == nil {
		for _, key := range []string{"label", "prediction", "result"} {
			if s, err := obj.GetString(key); err == nil {
				return nonEmptyLabel(s)
			}
		}
		return "", shapeError(endpointClassify, "classifier response has no label field")
	}
	return "", shapeError(endpointClassify, "classifier response is neither text nor an object")
}

func nonEmptyLabel(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", shapeError(endpointClassify, "classifier returned an empty label")
	}
	return strings.TrimSpace(s), nil
}

func decodeSpecies(body []byte) (SpeciesInfo, error) {
	value, err := jason.NewValueFromBytes(body)
	if err != nil {
		return nil, shapeError(endpointSpecies, "species response is not JSON: %v", err)
	}
	items, err := value.Array()
	if err != nil {
		return nil, shapeError(endpointSpecies, "species response is not a list")
	}

	records := make(SpeciesInfo, 0, len(items))
	for i, item := range items {
		obj, err := item.Object()
		if err != nil {
			return nil, shapeError(endpointSpecies, "species record %d is not an object", i)
		}
		records = append(records, decodeRecord(obj))
	}
	return records, nil
}

func decodeRecord(obj *jason.Object) species.Record {
	rec := species.Record{}
	if name, err := obj.GetString("name"); err == nil {
		rec.Name = name
	}
	if chars, err := obj.GetObject("characteristics"); err == nil {
		rec.Characteristics = stringMap(chars)
	}
	if tax, err := obj.GetObject("taxonomy"); err == nil {
		rec.Taxonomy = stringMap(tax)
	}
	if locs, err := obj.GetValue("locations"); err == nil {
		if arr, err := locs.Array(); err == nil {
			for _, v := range arr {
				rec.Locations = append(rec.Locations, stringify(v))
			}
		} else if s, err := locs.String(); err == nil {
			rec.Locations = []string{s}
		}
	}
	return rec
}

func decodeInsights(body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	value, err := jason.NewValueFromBytes(body)
	if err != nil {
		return text, nil
	}
	if s, err := value.String(); err == nil {
		return s, nil
	}
	if obj, err := value.Object(); err == nil {
		if s, err := obj.GetString("insights"); err == nil {
			return s, nil
		}
		return "", shapeError(endpointInsights, "insights response has no insights field")
	}
	return "", shapeError(endpointInsights, "insights response has an unexpected shape")
}

func stringMap(obj *jason.Object) map[string]string {
	out := make(map[string]string, len(obj.Map()))
	for key, value := range obj.Map() {
		out[key] = stringify(value)
	}
	return out
}

// stringify renders scalars as text and anything else as compact JSON.
func stringify(v *jason.Value) string {
	if s, err := v.String(); err == nil {
		return s
	}
	if f, err := v.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if b, err := v.Boolean(); err == nil {
		return strconv.FormatBool(b)
	}
	if v.Null() == nil {
		return ""
	}
	data, err := v.Marshal()
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeJSON(body []byte, v any) error {
	return json.Unmarshal(body, v)
}
