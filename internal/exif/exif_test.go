package exif

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exifHeader = []byte("Exif\x00\x00")

func sampleJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestInsertRead_RoundTrip(t *testing.T) {
	want := Fields{
		Description:  "a red fox in the snow",
		Software:     "Grok AI",
		DateTime:     "2024-05-01T12:30:45.123Z",
		DocumentName: "Session: abc123",
	}
	out, err := Insert(sampleJPEG(t), want)
	require.NoError(t, err)

	got, err := Read(out)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	_, err = jpeg.Decode(bytes.NewReader(out))
	assert.NoError(t, err, "output must remain a decodable JPEG")
}

func TestInsert_ReplacesExistingExif(t *testing.T) {
	first, err := Insert(sampleJPEG(t), Fields{Description: "first"})
	require.NoError(t, err)
	second, err := Insert(first, Fields{Description: "second", Software: "Grok AI"})
	require.NoError(t, err)

	assert.Equal(t, 1, bytes.Count(second, exifHeader))
	got, err := Read(second)
	require.NoError(t, err)
	assert.Equal(t, Fields{Description: "second", Software: "Grok AI"}, got)
}

func TestInsert_SegmentFollowsSOI(t *testing.T) {
	out, err := Insert(sampleJPEG(t), Fields{Software: "Grok AI"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE1}, out[:4])
	assert.Equal(t, exifHeader, out[6:12])
	assert.Equal(t, "MM", string(out[12:14]))
}

func TestInsert_TagsSortedInIFD0(t *testing.T) {
	out, err := Insert(sampleJPEG(t), Fields{Software: "X", Description: "desc", DocumentName: "Session: s", DateTime: "t"})
	require.NoError(t, err)

	ifd, err := rootIfd(out)
	require.NoError(t, err)
	var tags []uint16
	for _, ite := range ifd.Entries() {
		tags = append(tags, ite.TagId())
	}
	assert.Equal(t, []uint16{TagDocumentName, TagImageDescription, TagSoftware, TagDateTime}, tags)
}

func TestInsert_TruncatesOversizedDescription(t *testing.T) {
	long := strings.Repeat("狐", 30000) // 90000 bytes
	f := Fields{Description: long, Software: "Grok AI", DocumentName: "Session: s"}

	out, err := Insert(sampleJPEG(t), f)
	require.NoError(t, err)
	segLen := int(binary.BigEndian.Uint16(out[4:6]))
	assert.LessOrEqual(t, segLen, maxSegmentLen)

	got, err := Read(out)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.Description))
	assert.True(t, strings.HasPrefix(long, got.Description))
	assert.Greater(t, len(got.Description), 60000)
	assert.Equal(t, "Grok AI", got.Software)
}

func TestRead_LittleEndian(t *testing.T) {
	out, err := insert(sampleJPEG(t), Fields{Software: "ab", Description: "little endian"}, binary.LittleEndian)
	require.NoError(t, err)
	require.Equal(t, "II", string(out[12:14]))

	got, err := Read(out)
	require.NoError(t, err)
	assert.Equal(t, Fields{Software: "ab", Description: "little endian"}, got)
}

func TestErrors(t *testing.T) {
	_, err := Insert([]byte("GIF89a"), Fields{})
	assert.ErrorIs(t, err, ErrNotJPEG)

	_, err = Read([]byte{0x89, 'P', 'N', 'G'})
	assert.ErrorIs(t, err, ErrNotJPEG)

	_, err = Read(sampleJPEG(t))
	assert.ErrorIs(t, err, ErrNoExif)

	_, err = Read([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0xFF, 0xFF})
	assert.Error(t, err)
}
