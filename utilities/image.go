package utilities

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"strings"
)

func ValidateImage(data string, maxSizeInKB int, supportedTypes []string) error {
	imgByteData, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("image data base64 decoding failed: %w", err)
	}

	_, mimeType, err := image.Decode(bytes.NewReader(imgByteData))
	if err != nil {
		return fmt.Errorf("image decoding failed: %w", err)
	}

	size := len(imgByteData)
	maxSizeInB := maxSizeInKB * 1024
	if size > maxSizeInB {
		return fmt.Errorf("image size cannot be greater than %d KB", maxSizeInKB)
	}

	mimeSupported := false
	for _, supportedType := range supportedTypes {
		if mimeType == supportedType {
			mimeSupported = true
			break
		}
	}

	if !mimeSupported {
		return fmt.Errorf("unsupported file type %s, supported are: %s", mimeType, strings.Join(supportedTypes, ","))
	}

	return nil
}

// TransparentPixelPNG returns a 1x1 transparent PNG. Apple rejects pkpass
// bundles without an icon, so a missing icon asset is substituted with this
// instead of failing the whole build.
func TransparentPixelPNG() []byte {
	buf := new(bytes.Buffer)
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	if err := png.Encode(buf, img); err != nil {
		// encoding a 1x1 in-memory image cannot fail
		panic(err)
	}

	return buf.Bytes()
}
