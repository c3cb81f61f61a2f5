package ocr

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CLIEngine shells out to the tesseract binary and reads its TSV output,
// which carries both the words and their confidences.
type CLIEngine struct {
	Tesseract   string // binary name or absolute path; default "tesseract"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default

	runner Runner
}

func NewCLIEngine(tesseract, tessdataDir string, runner Runner) *CLIEngine {
	if tesseract == "" {
		tesseract = "tesseract"
	}
	if runner == nil {
		runner = NewExecRunner(nil)
	}
	return &CLIEngine{Tesseract: tesseract, TessdataDir: tessdataDir, runner: runner}
}

func (e *CLIEngine) Recognize(ctx context.Context, image []byte, language string) (Recognition, error) {
	f, err := os.CreateTemp("", "iv-ocr-*.img")
	if err != nil {
		return Recognition{}, fmt.Errorf("temp image: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(image); err != nil {
		_ = f.Close()
		return Recognition{}, fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return Recognition{}, fmt.Errorf("close temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv
	args := []string{f.Name(), "stdout"}
	if language != "" {
		args = append(args, "-l", language)
	}
	if e.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.PSM))
	}
	if e.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.OEM))
	}
	if e.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.Tesseract, args...)
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract: %w: %s", err, tail([]byte(strings.TrimSpace(string(errb))), 512))
	}
	return ParseTSV(string(out)), nil
}

// ParseTSV rebuilds text from tesseract TSV output and returns the mean word
// confidence (0..100). Lines break when block, paragraph or line number change.
func ParseTSV(tsv string) Recognition {
	var (
		b        strings.Builder
		sum      float64
		n        int
		lastLine string
	)
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		confStr := cols[10]
		if word == "" || confStr == "" || confStr == "-1" {
			continue
		}
		v, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			continue
		}
		lineKey := cols[2] + "/" + cols[3] + "/" + cols[4]
		switch {
		case b.Len() == 0:
		case lineKey != lastLine:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		lastLine = lineKey
		b.WriteString(word)
		sum += v
		n++
	}
	if n == 0 {
		return Recognition{}
	}
	return Recognition{Text: b.String(), Confidence: sum / float64(n)}
}
