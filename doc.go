// Package datamineexporter downloads the community datamine spreadsheet
// from the Google Sheets API and writes every sheet tab to its own JSON
// file, optionally downloading the images the cells reference.
//
// The CLI lives in cmd/datamine-exporter; this root package exposes the
// same pipeline as a Go API.
//
// # Import
//
// The module path contains a hyphen but Go package names cannot, so the
// package is named datamineexporter:
//
//	import "github.com/hellenic-development/datamine-exporter" // package datamineexporter
//
// # Quick start
//
//	result, err := datamineexporter.Run(ctx, datamineexporter.Options{
//	    EnvFile:        ".env", // API_KEY=<key>
//	    OutputDir:      "export",
//	    DownloadImages: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range result.Files {
//	    fmt.Println(f.Path)
//	}
//
// # Output
//
// Each sheet tab becomes <output>/<tab>.json. Tab names are made safe for the
// filesystem; tabs that end up with the same name get -2, -3, ... appended
// in sheet order. With [Options.Format] set to "rows" each file holds an
// array of row objects keyed by the normalized header row instead of the raw
// grid data.
//
// # Logging
//
// Pass a [Logger] implementation in [Options.Logger] to receive progress
// messages. A nil Logger silences all output.
//
// # Image export
//
// When [Options.DownloadImages] is true every =IMAGE("url") formula is
// downloaded to <output>/images/<tab>/. Downloads run concurrently; a broken
// link is reported in [Result.Images] and the export carries on.
package datamineexporter
