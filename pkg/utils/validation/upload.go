// pkg/utils/validation/upload.go
package validation

import (
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"
)

var (
	ErrFileSize     = errors.New("file size exceeds limit")
	ErrImageType    = errors.New("invalid file type. Allowed types: JPG, PNG, WEBP")
	ErrAudioType    = errors.New("invalid file type. Allowed types: MP3, WAV, M4A, OGG, WEBM")
	ErrFileRequired = errors.New("no file provided")
)

const (
	MaxImageSize = 10 * 1024 * 1024 // 10MB
	MaxAudioSize = 25 * 1024 * 1024 // 25MB
)

var AllowedImageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var AllowedAudioTypes = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".webm": true,
}

func ValidateImage(file *multipart.FileHeader) error {
	if file == nil {
		return ErrFileRequired
	}

	if file.Size > MaxImageSize {
		return ErrFileSize
	}

	ext := filepath.Ext(strings.ToLower(file.Filename))
	if !AllowedImageTypes[ext] {
		return ErrImageType
	}

	return nil
}

func ValidateAudio(file *multipart.FileHeader) error {
	if file == nil {
		return ErrFileRequired
	}

	if file.Size > MaxAudioSize {
		return ErrFileSize
	}

	ext := filepath.Ext(strings.ToLower(file.Filename))
	if !AllowedAudioTypes[ext] {
		return ErrAudioType
	}

	return nil
}
