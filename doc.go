// Package psd decodes Adobe PSD (Photoshop Document) files into an
// in-memory, read-only view: canvas-level metadata and a flat,
// bottom-to-top list of layer records with decompressed pixel data.
//
// The package does not interpret blend modes, perform color math, render
// composites, or support streaming/incremental parsing — callers supply a
// fully materialized byte slice and receive fully materialized results.
// PSB (the large-document variant), non-8-bit depths, and indexed/duotone/
// Lab/multichannel color modes are rejected.
package psd
