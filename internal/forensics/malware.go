package forensics

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nao1215/darkwatch/internal/model"
)

// detectionMarker ends every clamscan detection line:
//
//	/tmp/eicar.com: Eicar-Test-Signature FOUND
const detectionMarker = "FOUND"

// clamscan exit codes.
const (
	clamscanClean    = 0
	clamscanInfected = 1
)

func (a *Adapter) malware(ctx context.Context, path string) model.MalwareSection {
	out, code, err := a.runner.Run(ctx, a.tools.Clamscan, "--no-summary", path)
	if err != nil {
		status := model.MalwareError
		if isNotInstalled(err) {
			status = model.MalwareNotInstalled
		}
		return model.MalwareSection{Status: status, Error: err.Error()}
	}

	if code == clamscanClean {
		return model.MalwareSection{Status: model.MalwareClean, Threats: []model.MalwareHit{}}
	}

	hits := parseClamscan(string(out), filepath.Base(path))
	if code == clamscanInfected && len(hits) > 0 {
		return model.MalwareSection{
			Status:   model.MalwareInfected,
			Detected: true,
			Threats:  hits,
		}
	}

	// Never treat an unexplained non-zero exit as clean.
	return model.MalwareSection{
		Status: model.MalwareError,
		Error:  fmt.Sprintf("%s exited with status %d", a.tools.Clamscan, code),
	}
}

// parseClamscan returns one hit per "path: Threat FOUND" line.
func parseClamscan(out, fileName string) []model.MalwareHit {
	var hits []model.MalwareHit
	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasSuffix(line, " "+detectionMarker) {
			continue
		}
		body := strings.TrimSpace(strings.TrimSuffix(line, detectionMarker))
		idx := strings.LastIndex(body, ": ")
		if idx < 0 {
			continue
		}
		threat := strings.TrimSpace(body[idx+2:])
		if threat == "" {
			continue
		}
		hits = append(hits, model.MalwareHit{File: fileName, Threat: threat})
	}
	return hits
}
