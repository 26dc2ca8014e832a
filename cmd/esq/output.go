package main

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/robert-malhotra/go-es-query/pkg/processor"
)

type resultView struct {
	Total        int64                        `json:"total"`
	TotalIsExact bool                         `json:"total_is_exact"`
	Page         int                          `json:"page,omitempty"`
	PerPage      int                          `json:"per_page,omitempty"`
	LastPage     int                          `json:"last_page,omitempty"`
	Documents    []processor.Document         `json:"documents"`
	Aggregations map[string]processor.Summary `json:"aggregations,omitempty"`
}

func newResultView(res *processor.Result) resultView {
	return resultView{
		Total:        res.Total,
		TotalIsExact: res.TotalIsExact,
		Documents:    res.Documents,
		Aggregations: res.Aggregations,
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printJSONArray writes documents as they arrive. The closing bracket is
// written even when the sequence fails part way.
func printJSONArray(w io.Writer, seq iter.Seq2[processor.Document, error]) error {
	if _, err := fmt.Fprintln(w, "["); err != nil {
		return err
	}
	var iterErr error
	printed := false
	for doc, err := range seq {
		if err != nil {
			iterErr = err
			break
		}
		data, err := json.MarshalIndent(doc, "  ", "  ")
		if err != nil {
			iterErr = err
			break
		}
		if printed {
			if _, err := fmt.Fprintln(w, ","); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, "  ", string(data)); err != nil {
			return err
		}
		printed = true
	}
	if printed {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "]"); err != nil && iterErr == nil {
		iterErr = err
	}
	return iterErr
}
