// upload_dataset.go: standalone script to upload a potency CSV to a running server and query predictions.
//
// Usage:
//
//	go run scripts/upload_dataset.go -csv data/potency.csv -api http://localhost:8700 -strategy linear -ec50 5,12.5,40
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
)

type uploadResult struct {
	Strategy string `json:"strategy"`
	Accepted int    `json:"accepted"`
	Rejected []struct {
		Line   int    `json:"line"`
		Reason string `json:"reason"`
	} `json:"rejected"`
	Formula   string `json:"formula"`
	SavedTo   string `json:"saved_to"`
	SaveError string `json:"save_error"`
	Metrics   *struct {
		MSE float64 `json:"mse"`
		R2  float64 `json:"r2"`
	} `json:"metrics"`
}

func main() {
	csvPath := flag.String("csv", "potency.csv", "path to CSV with Substance, EC50_nM, Potency columns")
	apiURL := flag.String("api", "http://localhost:8700", "Potency API base URL")
	strategy := flag.String("strategy", "", "linear or interpolation (server default when empty)")
	ec50s := flag.String("ec50", "", "comma-separated EC50 values to predict after upload")
	flag.Parse()

	data, err := os.ReadFile(*csvPath)
	if err != nil {
		log.Fatalf("read csv: %v", err)
	}

	client := &http.Client{}
	base := strings.TrimRight(*apiURL, "/") + "/api/v1/sessions"

	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := call(client, "POST", base, "", nil, http.StatusCreated, &created); err != nil {
		log.Fatalf("create session: %v", err)
	}
	log.Printf("session %s", created.SessionID)
	base += "/" + created.SessionID

	url := base + "/dataset"
	if *strategy != "" {
		url += "?strategy=" + *strategy
	}
	var res uploadResult
	if err := call(client, "POST", url, "text/csv", data, http.StatusOK, &res); err != nil {
		log.Fatalf("upload: %v", err)
	}
	log.Printf("fitted %s on %d rows (%d rejected)", res.Strategy, res.Accepted, len(res.Rejected))
	for _, r := range res.Rejected {
		log.Printf("  line %d: %s", r.Line, r.Reason)
	}
	if res.Metrics != nil {
		log.Printf("%s  mse=%.4f r2=%.4f", res.Formula, res.Metrics.MSE, res.Metrics.R2)
	}
	if res.SavedTo != "" {
		log.Printf("model saved to %s", res.SavedTo)
	}
	if res.SaveError != "" {
		log.Printf("model not saved: %s", res.SaveError)
	}

	predicted, failed := 0, 0
	for _, v := range strings.Split(*ec50s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		body, _ := json.Marshal(map[string]string{"ec50": v})
		var p struct {
			Message string `json:"message"`
		}
		if err := call(client, "POST", base+"/predict", "application/json", body, http.StatusOK, &p); err != nil {
			log.Printf("skip %q: %v", v, err)
			failed++
			continue
		}
		fmt.Printf("EC50 %s nM: %s\n", v, p.Message)
		predicted++
	}

	log.Printf("done: %d predicted, %d failed", predicted, failed)
}

func call(client *http.Client, method, url, contentType string, body []byte, want int, out interface{}) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return json.Unmarshal(payload, out)
}
