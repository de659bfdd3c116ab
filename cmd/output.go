package cmd

import (
	"encoding/json"
	"fmt"
	"io"
)

const defaultListLimit = 10

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeRendered(w io.Writer, rendered string, err error) error {
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
