package runner

import (
	"bufio"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// chunk lines may carry long content fragments
	maxLineSize = 1 << 20
)

// readStream consumes a server-sent event stream and calls onContent for
// every non-empty content fragment, in order.
//
// Lines without the data prefix are ignored, chunks that are not valid JSON
// are skipped, and the stream ends at the done sentinel or at EOF.
func readStream(r io.Reader, onContent func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := line[len(dataPrefix):]
		if payload == doneSentinel {
			return nil
		}
		if !gjson.Valid(payload) {
			continue
		}

		if content := gjson.Get(payload, "choices.0.delta.content").String(); content != "" {
			onContent(content)
		}
	}

	return scanner.Err()
}
