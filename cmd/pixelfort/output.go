package main

import (
	"fmt"
	"os"
	"time"

	"pixelfort/internal/api"
	"pixelfort/internal/format"
)

var outputFormatter format.Formatter

func selectOutputFormatter(name string) error {
	if name == "" {
		outputFormatter = nil
		return nil
	}
	formatter, err := format.ByName(name)
	if err != nil {
		return err
	}
	outputFormatter = formatter
	return nil
}

func structuredOutput() bool {
	return outputFormatter != nil
}

func writeFormatted(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(msg string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, msg, args...)
	return err
}

func writePhotoList(photos []api.PhotoResponse) error {
	for _, photo := range photos {
		if err := writePlain("%s\n", formatPhotoLine(photo)); err != nil {
			return err
		}
	}
	return nil
}

func writePhotoDetail(photo api.PhotoResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", photo.ID),
		fmt.Sprintf("digest: %s", photo.Digest),
		fmt.Sprintf("name: %s", photo.OriginalName),
		fmt.Sprintf("mime_type: %s", photo.MimeType),
		fmt.Sprintf("size_bytes: %d", photo.SizeBytes),
		fmt.Sprintf("created_at: %s", formatTimestamp(photo.CreatedAt)),
	}
	if photo.Derived.Width != nil && photo.Derived.Height != nil {
		lines = append(lines, fmt.Sprintf("dimensions: %dx%d", *photo.Derived.Width, *photo.Derived.Height))
	}
	if photo.Derived.TakenAt != nil {
		lines = append(lines, fmt.Sprintf("taken_at: %s", formatTimestamp(*photo.Derived.TakenAt)))
	}
	if photo.Derived.CameraMake != nil || photo.Derived.CameraModel != nil {
		lines = append(lines, fmt.Sprintf("camera: %s %s", derefOrEmpty(photo.Derived.CameraMake), derefOrEmpty(photo.Derived.CameraModel)))
	}
	if photo.Derived.GPSLat != nil && photo.Derived.GPSLon != nil {
		lines = append(lines, fmt.Sprintf("gps: %.6f,%.6f", *photo.Derived.GPSLat, *photo.Derived.GPSLon))
	}
	lines = append(lines, fmt.Sprintf("has_thumbnail: %t", photo.HasThumbnail))

	for _, line := range lines {
		if err := writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func formatPhotoLine(photo api.PhotoResponse) string {
	dims := "?x?"
	if photo.Derived.Width != nil && photo.Derived.Height != nil {
		dims = fmt.Sprintf("%dx%d", *photo.Derived.Width, *photo.Derived.Height)
	}
	return fmt.Sprintf("%s  %8d  %-9s  %s", photo.ID, photo.SizeBytes, dims, photo.OriginalName)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func derefOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
