package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForSketch asks for the path of the sketch to convert. Returns "" if
// the user enters nothing.
func PromptForSketch(in io.Reader, out io.Writer) string {
	return prompt(in, out, "Sketch image (jpg, png, webp): ")
}

// PromptForNotes asks for optional context to send with the sketch.
func PromptForNotes(in io.Reader, out io.Writer) string {
	return prompt(in, out, "Notes for the converter (optional): ")
}

func prompt(in io.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		if err != io.EOF {
			log.Warn().Err(err).Msg("Failed to read input")
		}
		return ""
	}
	return strings.TrimSpace(input)
}
