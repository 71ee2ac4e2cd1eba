// Package topdf converts documents, data files, markup, images and source
// code to PDF without any external program.
//
// # Quick Start
//
// Submit a batch and follow its progress:
//
//	s := topdf.Submit([]string{"report.csv", "notes.md"},
//	    topdf.WithOutputDir("out"),
//	    topdf.WithConcurrency(4),
//	)
//	for ev := range s.Subscribe() {
//	    fmt.Println(ev.Source, ev.Status, ev.Message)
//	}
//	fmt.Printf("%+v\n", s.Summary())
//
// Subscribe replays every event since submission and ends once all jobs
// are terminal, so it can be called at any time and by several readers.
// Cancel stops jobs that have not started; running jobs finish.
//
// # Conversion Pipeline
//
// Each job runs these stages in one goroutine:
//
//  1. Format detection from the extension, with content sniffing for files
//     without one and for images whose bytes disagree with their name
//  2. Parsing into a format-independent document (paragraphs, tables, code
//     blocks, images)
//  3. Font resolution: one TrueType face per script in use, with CJK
//     coverage when needed and a built-in fallback otherwise
//  4. Layout and pagination into PDF
//  5. Atomic write of <stem>.pdf beside the source or in the output
//     directory
//
// A failure in any stage fails only that job. Font substitution is a
// warning, recorded in Job.Warnings.
//
// # Single Files
//
// Use a Converter directly to convert one file or bytes in memory:
//
//	conv, err := topdf.NewConverter(topdf.WithPageSettings(topdf.PageSettings{
//	    Size: topdf.PageSizeLetter, Orientation: topdf.OrientationLandscape, Margin: 1,
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := conv.ConvertFile(ctx, "data.json", "data.pdf")
//
// # Errors
//
// Job errors match the sentinels ErrUnsupportedFormat, ErrParse, ErrRender,
// ErrIO and ErrCancelled with errors.Is, and the typed errors
// *UnsupportedError, *ParseError, *RenderError and *IOError with errors.As.
package topdf
