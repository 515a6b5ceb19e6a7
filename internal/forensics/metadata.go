package forensics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/darkwatch/internal/model"
)

// Metadata sources recorded in model.MetadataSection.Source.
const (
	SourceExiftool     = "exiftool"
	SourceExiftoolText = "exiftool-text"
	SourceGoExif       = "go-exif"
)

// metadataAllowList holds the forensically relevant fields kept from
// exiftool output.
var metadataAllowList = []string{
	// file identity
	"FileName", "FileSize", "FileType", "FileTypeExtension", "MimeType",
	"FileModifyDate", "FileCreateDate", "FileAccessDate",
	// authorship
	"Title", "Subject", "Author", "Creator", "Producer",
	"Keywords", "Comments", "Description",
	// image
	"ImageWidth", "ImageHeight", "XResolution", "YResolution",
	"ColorSpace", "ExifImageHeight", "ExifImageWidth",
	// device
	"Make", "Model", "Software", "Firmware", "DeviceModel",
	"DateTime", "DateTimeOriginal", "DateTimeDigitized", "CreateDate", "ModifyDate",
	"GPSLatitude", "GPSLongitude", "GPSAltitude", "GPSDateStamp",
	// archive
	"CompressedSize", "UncompressedSize", "CompressionRatio",
	"EntryCount", "CodePage", "CharSet",
	// audio and video
	"Duration", "FrameRate", "TrackCreateDate", "TrackModifyDate",
	"AudioChannels", "AudioSampleRate", "BitRate",
	// web
	"URL", "TargetFrame",
}

var allowedField = func() map[string]struct{} {
	m := make(map[string]struct{}, len(metadataAllowList))
	for _, f := range metadataAllowList {
		m[f] = struct{}{}
	}
	return m
}()

// Fields dropped when the allow-list matches nothing.
var (
	deniedFieldPrefixes = []string{"Source", "UserComment"}
	deniedFields        = map[string]struct{}{
		"ExifToolVersion": {},
		"Directory":       {},
		"FilePermissions": {},
	}
)

func (a *Adapter) metadata(ctx context.Context, path string) model.MetadataSection {
	out, code, err := a.runner.Run(ctx, a.tools.Exiftool, "-json", path)
	switch {
	case isNotInstalled(err):
		return nativeMetadata(path, err)
	case err != nil:
		return model.MetadataSection{Status: statusFor(err), Error: err.Error()}
	case code != 0:
		// Retry without -json; plain output sometimes survives files the
		// JSON writer rejects.
		text, textCode, textErr := a.runner.Run(ctx, a.tools.Exiftool, path)
		if textErr == nil && textCode == 0 {
			if fields := parseExiftoolText(string(text)); len(fields) > 0 {
				return model.MetadataSection{Status: model.AnalysisOK, Source: SourceExiftoolText, Fields: fields}
			}
		}
		return model.MetadataSection{
			Status: model.AnalysisError,
			Error:  fmt.Sprintf("%s exited with status %d", a.tools.Exiftool, code),
		}
	}

	raw, err := decodeExiftoolJSON(out)
	if err != nil {
		if fields := parseExiftoolText(string(out)); len(fields) > 0 {
			return model.MetadataSection{Status: model.AnalysisOK, Source: SourceExiftoolText, Fields: fields}
		}
		return model.MetadataSection{Status: model.AnalysisError, Error: err.Error()}
	}
	return model.MetadataSection{
		Status: model.AnalysisOK,
		Source: SourceExiftool,
		Fields: filterMetadata(raw),
	}
}

// decodeExiftoolJSON returns the first object of exiftool's JSON array
// with every value rendered as a string.
func decodeExiftoolJSON(out []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.UseNumber()
	var docs []map[string]any
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to parse exiftool output: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("failed to parse exiftool output: empty result")
	}
	fields := make(map[string]string, len(docs[0]))
	for k, v := range docs[0] {
		fields[k] = formatValue(v)
	}
	return fields, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, formatValue(p))
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// filterMetadata keeps allow-listed fields. When none are present it
// keeps everything except the deny-list instead.
func filterMetadata(raw map[string]string) map[string]string {
	kept := make(map[string]string)
	for k, v := range raw {
		if _, ok := allowedField[k]; ok {
			kept[k] = v
		}
	}
	if len(kept) > 0 {
		return kept
	}
	for k, v := range raw {
		if denied(k) {
			continue
		}
		kept[k] = v
	}
	return kept
}

func denied(field string) bool {
	if _, ok := deniedFields[field]; ok {
		return true
	}
	for _, p := range deniedFieldPrefixes {
		if strings.HasPrefix(field, p) {
			return true
		}
	}
	return false
}

// parseExiftoolText parses "Key Name   : value" lines.
func parseExiftoolText(out string) map[string]string {
	fields := make(map[string]string)
	for line := range strings.SplitSeq(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" || strings.HasPrefix(key, "----") {
			continue
		}
		fields[key] = value
	}
	return fields
}

// nativeMetadata reads EXIF tags directly when exiftool is unavailable.
// Files without an EXIF block report the original not-installed error.
func nativeMetadata(path string, toolErr error) model.MetadataSection {
	rawExif, err := exif.SearchFileAndExtractExif(path)
	if err != nil || len(rawExif) == 0 {
		return model.MetadataSection{Status: model.AnalysisNotInstalled, Error: toolErr.Error()}
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil || len(entries) == 0 {
		return model.MetadataSection{Status: model.AnalysisNotInstalled, Error: toolErr.Error()}
	}

	raw := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.TagName == "" {
			continue
		}
		raw[e.TagName] = e.Formatted
	}
	return model.MetadataSection{
		Status: model.AnalysisOK,
		Source: SourceGoExif,
		Fields: filterMetadata(raw),
	}
}
