package transporthttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"example.com/learntrack/internal/domain"
)

// Problem is an RFC 9457 problem details body.
type Problem struct {
	Type     string              `json:"type,omitempty"`
	Title    string              `json:"title,omitempty"`
	Status   int                 `json:"status,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string, errs map[string][]string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
		Errors: errs,
	})
}

// batchErrors keys per-event field errors as events[i].field.
func batchErrors(all [][]domain.FieldError) map[string][]string {
	prob := map[string][]string{}
	for i, arr := range all {
		k := "events[" + strconv.Itoa(i) + "]"
		for _, fe := range arr {
			prob[k+"."+fe.Field] = append(prob[k+"."+fe.Field], fe.Msg)
		}
	}
	return prob
}
