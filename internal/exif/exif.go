// Package exif embeds and reads the descriptive IFD0 text tags of a capture.
package exif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	goexif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// IFD0 tags written by Insert, in the order they appear in the directory.
const (
	TagDocumentName     uint16 = 0x010D
	TagImageDescription uint16 = 0x010E
	TagSoftware         uint16 = 0x0131
	TagDateTime         uint16 = 0x0132
)

const (
	// The APP1 length field counts itself and cannot exceed 0xFFFF.
	maxSegmentLen = 0xFFFF

	exifPrefixLen = 6 // "Exif\0\0"
	tiffHeaderLen = 8
	entryLen      = 12
	// Room for encoder alignment the size estimate does not model.
	slack = 16
)

// DateTimeLayout is the timestamp format stored in the DateTime tag.
const DateTimeLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrNotJPEG reports input that does not start with a JPEG SOI marker.
	ErrNotJPEG = errors.New("exif: not a JPEG stream")
	// ErrNoExif reports a JPEG without an Exif APP1 segment.
	ErrNoExif = errors.New("exif: no Exif segment")
)

// Fields are the text tags of a capture. Empty fields are omitted.
type Fields struct {
	Description  string
	Software     string
	DateTime     string
	DocumentName string
}

type tag struct {
	id    uint16
	name  string
	value string
}

func (f Fields) tags() []tag {
	all := []tag{
		{TagDocumentName, "DocumentName", f.DocumentName},
		{TagImageDescription, "ImageDescription", f.Description},
		{TagSoftware, "Software", f.Software},
		{TagDateTime, "DateTime", f.DateTime},
	}
	out := all[:0]
	for _, t := range all {
		if t.value != "" {
			out = append(out, t)
		}
	}
	return out
}

// segmentSize estimates the APP1 length-field value of the encoded fields.
func segmentSize(f Fields) int {
	tags := f.tags()
	n := 2 + exifPrefixLen + tiffHeaderLen + 2 + len(tags)*entryLen + 4
	for _, t := range tags {
		if v := len(t.value) + 1; v > 4 {
			n += v + v%2
		}
	}
	return n + slack
}

func truncateToFit(f Fields) string {
	over := segmentSize(f) - maxSegmentLen
	if over <= 0 {
		return f.Description
	}
	keep := len(f.Description) - over
	if keep <= 0 {
		return ""
	}
	for keep > 0 && !utf8.RuneStart(f.Description[keep]) {
		keep--
	}
	return f.Description[:keep]
}

func newBuilder(f Fields, order binary.ByteOrder) (*goexif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("exif: load IFD mapping: %w", err)
	}
	ib := goexif.NewIfdBuilder(im, goexif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, order)

	f.Description = truncateToFit(f)
	for _, t := range f.tags() {
		if err := ib.SetStandardWithName(t.name, t.value); err != nil {
			return nil, fmt.Errorf("exif: set %s: %w", t.name, err)
		}
	}
	return ib, nil
}

func parse(img []byte) (*jis.SegmentList, error) {
	if len(img) < 2 || img[0] != 0xFF || img[1] != jis.MARKER_SOI {
		return nil, ErrNotJPEG
	}
	mc, err := jis.NewJpegMediaParser().ParseBytes(img)
	if err != nil {
		return nil, fmt.Errorf("exif: parse JPEG: %w", err)
	}
	sl, ok := mc.(*jis.SegmentList)
	if !ok {
		return nil, fmt.Errorf("exif: unexpected media context %T", mc)
	}
	return sl, nil
}

// Insert returns img with any existing Exif APP1 segments removed and a new big-endian
// one built from f placed immediately after SOI. The description is truncated on a rune
// boundary when the segment would not fit in a single APP1.
func Insert(img []byte, f Fields) ([]byte, error) {
	return insert(img, f, exifcommon.EncodeDefaultByteOrder)
}

func insert(img []byte, f Fields, order binary.ByteOrder) ([]byte, error) {
	sl, err := parse(img)
	if err != nil {
		return nil, err
	}
	for {
		dropped, err := sl.DropExif()
		if err != nil {
			return nil, fmt.Errorf("exif: drop existing segment: %w", err)
		}
		if !dropped {
			break
		}
	}

	ib, err := newBuilder(f, order)
	if err != nil {
		return nil, err
	}
	if err := sl.SetExif(ib); err != nil {
		return nil, fmt.Errorf("exif: encode segment: %w", err)
	}
	if _, seg, err := sl.FindExif(); err == nil && len(seg.Data)+2 > maxSegmentLen {
		return nil, fmt.Errorf("exif: segment of %d bytes exceeds APP1 limit", len(seg.Data)+2)
	}

	var out bytes.Buffer
	out.Grow(len(img) + segmentSize(f))
	if err := sl.Write(&out); err != nil {
		return nil, fmt.Errorf("exif: write JPEG: %w", err)
	}
	return out.Bytes(), nil
}

// Read parses the IFD0 text tags of the first Exif APP1 segment of img.
func Read(img []byte) (Fields, error) {
	ifd, err := rootIfd(img)
	if err != nil {
		return Fields{}, err
	}

	var f Fields
	for _, ite := range ifd.Entries() {
		if ite.TagType() != exifcommon.TypeAscii {
			continue
		}
		v, err := ite.Value()
		if err != nil {
			return Fields{}, fmt.Errorf("exif: tag 0x%04X: %w", ite.TagId(), err)
		}
		s, _ := v.(string)
		switch ite.TagId() {
		case TagDocumentName:
			f.DocumentName = s
		case TagImageDescription:
			f.Description = s
		case TagSoftware:
			f.Software = s
		case TagDateTime:
			f.DateTime = s
		}
	}
	return f, nil
}

func rootIfd(img []byte) (*goexif.Ifd, error) {
	sl, err := parse(img)
	if err != nil {
		return nil, err
	}
	if _, _, err := sl.FindExif(); err != nil {
		return nil, ErrNoExif
	}
	ifd, _, err := sl.Exif()
	if err != nil {
		return nil, fmt.Errorf("exif: decode segment: %w", err)
	}
	return ifd, nil
}
