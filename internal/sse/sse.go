// Package sse assembles the text of an OpenAI-style server-sent event stream
// where each event carries choices[0].delta.content.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoContent is returned when the stream carried no delta text.
var ErrNoContent = errors.New("sse: stream contained no content")

type Result struct {
	Content   string
	Raw       string
	Events    int
	Malformed int
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Decode concatenates the delta content of every data event in body.
// The [DONE] sentinel ends the stream. Lines that are not data events are
// ignored and events that are not valid JSON are counted as malformed.
// When nothing was assembled the result is still returned, with Raw set,
// together with ErrNoContent.
func Decode(body []byte) (Result, error) {
	res := Result{Raw: string(body)}

	var sb strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		res.Events++
		var c chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			res.Malformed++
			continue
		}
		if len(c.Choices) == 0 {
			continue
		}
		if delta := c.Choices[0].Delta.Content; delta != "" {
			sb.WriteString(delta)
		} else if msg := c.Choices[0].Message.Content; msg != "" {
			sb.WriteString(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}

	res.Content = sb.String()
	if strings.TrimSpace(res.Content) == "" {
		return res, ErrNoContent
	}
	return res, nil
}
