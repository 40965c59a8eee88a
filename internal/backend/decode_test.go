package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUploadMetadataValues(t *testing.T) {
	body := []byte(`{
		"imageUrl": "https://cdn.example.com/a.png",
		"metadata": {
			"width": 640,
			"format": "png",
			"animated": false,
			"camera": null,
			"exif": {"iso": 200},
			"tags": ["wild", "kenya"]
		}
	}`)

	result, err := decodeUpload(body)
	require.NoError(t, err)
	assert.Equal(t, "640", result.Metadata["width"])
	assert.Equal(t, "png", result.Metadata["format"])
	assert.Equal(t, "false", result.Metadata["animated"])
	assert.Empty(t, result.Metadata["camera"])
	assert.JSONEq(t, `{"iso":200}`, result.Metadata["exif"])
	assert.JSONEq(t, `["wild","kenya"]`, result.Metadata["tags"])
}
