package vector

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// buildHashFields converts a chunk and its embedding into a flat
// map[string]string for HSET. Field names line up with the FT schema.
func buildHashFields(chunk domain.Chunk, vec []float32) map[string]string {
	return map[string]string{
		"vector":         vectorToBytes(vec),
		"text":           chunk.Text,
		"source":         chunk.Source,
		"heading":        chunk.Breadcrumb(),
		"url":            chunk.URL,
		"chunk_index":    strconv.Itoa(chunk.ChunkIndex),
		"token_count":    strconv.Itoa(chunk.TokenCount),
		"overlap_tokens": strconv.Itoa(chunk.OverlapTokens),
	}
}

// parseHashFields converts a flat hash map back into a chunk.
func parseHashFields(id string, m map[string]string) domain.Chunk {
	chunk := domain.Chunk{
		ID:     id,
		Text:   m["text"],
		Source: m["source"],
		URL:    m["url"],
	}
	if heading := m["heading"]; heading != "" {
		chunk.HeadingPath = strings.Split(heading, " > ")
	}
	chunk.ChunkIndex, _ = strconv.Atoi(m["chunk_index"])
	chunk.TokenCount, _ = strconv.Atoi(m["token_count"])
	chunk.OverlapTokens, _ = strconv.Atoi(m["overlap_tokens"])
	return chunk
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
