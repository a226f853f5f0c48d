package decode

import "strings"

// sseFrame is one blank-line-delimited SSE event, already reassembled from
// its event:/data: lines.
type sseFrame struct {
	event string
	data  string
}

// splitSSEFrames parses a buffer of SSE text into complete frames. It does
// not handle a frame split across Feed calls — callers must feed the raw
// stream through a line-reassembling buffer upstream (see Stream in
// pkg/llm, which reads one full event from the wire before calling Feed).
func splitSSEFrames(buf string) []sseFrame {
	var frames []sseFrame
	for _, block := range strings.Split(buf, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var f sseFrame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				if f.data != "" {
					f.data += "\n"
				}
				f.data += strings.TrimPrefix(line, "data: ")
			}
		}
		if f.event != "" || f.data != "" {
			frames = append(frames, f)
		}
	}
	return frames
}
