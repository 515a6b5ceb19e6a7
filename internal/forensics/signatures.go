package forensics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/darkwatch/internal/model"
)

// maxSignatures bounds the embedded signatures kept per file.
const maxSignatures = 10

func (a *Adapter) signatures(ctx context.Context, path string) model.SignaturesSection {
	out, code, err := a.runner.Run(ctx, a.tools.Binwalk, "-B", path)
	if err != nil {
		return model.SignaturesSection{Status: statusFor(err), Error: err.Error()}
	}
	if code != 0 {
		return model.SignaturesSection{
			Status: model.AnalysisError,
			Error:  fmt.Sprintf("%s exited with status %d", a.tools.Binwalk, code),
		}
	}
	return model.SignaturesSection{
		Status:     model.AnalysisOK,
		Signatures: parseBinwalk(string(out)),
	}
}

// parseBinwalk extracts descriptions from binwalk's table output:
//
//	DECIMAL       HEXADECIMAL     DESCRIPTION
//	--------------------------------------------------------------------------------
//	0             0x0             Zip archive data, at least v2.0 to extract
func parseBinwalk(out string) []string {
	sigs := []string{}
	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "DECIMAL") || strings.HasPrefix(line, "---") {
			continue
		}
		sigs = append(sigs, binwalkDescription(line))
		if len(sigs) == maxSignatures {
			break
		}
	}
	return sigs
}

// binwalkDescription strips the offset columns when present.
func binwalkDescription(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return line
	}
	if _, err := strconv.ParseInt(fields[0], 10, 64); err != nil {
		return line
	}
	if !strings.HasPrefix(strings.ToLower(fields[1]), "0x") {
		return line
	}
	rest := strings.TrimSpace(line[len(fields[0]):])
	return strings.TrimSpace(rest[len(fields[1]):])
}
