package forensics

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/darkwatch/internal/model"
)

const (
	// minStringLength is the shortest printable run kept.
	minStringLength = 8
	// maxStringLength is the longest line of strings output that can be read.
	maxStringLength = 1024 * 1024
	// stringsSampleSize bounds the sample stored in the report.
	stringsSampleSize = 20
)

func (a *Adapter) strings(ctx context.Context, path string) model.StringsSection {
	out, code, err := a.runner.Run(ctx, a.tools.Strings, "-n", fmt.Sprint(minStringLength), path)
	if err != nil {
		return model.StringsSection{Status: statusFor(err), Error: err.Error()}
	}
	if code != 0 {
		return model.StringsSection{
			Status: model.AnalysisError,
			Error:  fmt.Sprintf("%s exited with status %d", a.tools.Strings, code),
		}
	}

	section := model.StringsSection{Status: model.AnalysisOK, Sample: []string{}}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), maxStringLength)
	for sc.Scan() {
		line := sc.Text()
		if len(line) < minStringLength {
			continue
		}
		section.Count++
		if len(section.Sample) < stringsSampleSize {
			section.Sample = append(section.Sample, line)
		}
	}
	if err := sc.Err(); err != nil {
		// The count and sample cover only the output read so far.
		section.Status = model.AnalysisError
		section.Error = fmt.Sprintf("failed to read %s output: %v", a.tools.Strings, err)
	}
	return section
}

func isNotInstalled(err error) bool {
	return errors.Is(err, ErrToolNotInstalled)
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrToolTimeout)
}
