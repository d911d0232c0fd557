package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/epub"
	"github.com/shishobooks/folio/pkg/htmlutil"
)

func main() {
	log := logger.New()
	ctx := log.WithContext(context.Background())

	var opts struct {
		JSONOutput string `short:"o" long:"json-output" description:"A path to write the parsed blocks and chapters to as JSON"`
		Blocks     bool   `short:"b" long:"blocks" description:"Print every block instead of only the chapter outline"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-epub [-b] [-o out.json] <path/to/file.epub>")
		os.Exit(1)
	}

	res, err := epub.ParseFile(ctx, args[0], epub.Options{})
	if err != nil {
		log.Err(err).Fatal("epub parse error")
	}

	fmt.Printf("Title: %s\nAuthor(s): %v\nLanguage: %s\nHas Cover: %v\n", res.Metadata.Title, res.Metadata.Authors, res.Metadata.Language, res.Metadata.Cover != "")
	fmt.Printf("Blocks: %d\nChapters: %d\n", len(res.Blocks), len(res.Chapters))
	for _, w := range res.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	for _, ch := range res.Chapters {
		fmt.Printf("\n%3d  %-40s [%d, %d) via %s\n", ch.Index, ch.Title, ch.BlockStartIndex, ch.BlockEndIndex, ch.TitleSource)
		if ch.Len() > 0 && !opts.Blocks {
			first := res.Blocks[ch.BlockStartIndex]
			fmt.Printf("     %s\n", htmlutil.Preview(first.Text+first.HTML, 72))
		}
		if opts.Blocks {
			for _, b := range res.Blocks[ch.BlockStartIndex:ch.BlockEndIndex] {
				fmt.Printf("     %s\n", b)
			}
		}
	}

	if opts.JSONOutput != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			log.Err(err).Fatal("json marshal error")
		}
		if err := os.WriteFile(opts.JSONOutput, data, 0644); err != nil {
			log.Err(err).Fatal("file write error")
		}
	}
}
