package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/dirk.krummacker/contactbook/internal/model"
	"gitlab.com/dirk.krummacker/contactbook/internal/randomgen"
)

// Usage example on the command line:
// > TOKEN=$(go run ../service token --owner 1) go run main.go
// > SERVER=http://localhost:9090 TOKEN=... go run main.go
func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	server := os.Getenv("SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	token := os.Getenv("TOKEN")
	if token == "" {
		log.Fatal().Msg("TOKEN env variable is required; issue one with the token command of the service")
	}
	c := &client{server: server, token: token, http: &http.Client{Timeout: 30 * time.Second}}

	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET  FAVORITE    DELETE ")
	fmt.Println("-------------------------------------------------------------")
	sizes := []int{1000, 5000, 10000, 50000, 100000}
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)

		// POST requests
		ids := make([]int64, 0, loops)
		var duration int64
		for i := 0; i < loops; i++ {
			id, d := c.create(randomBody())
			ids = append(ids, id)
			duration += d
		}
		fmt.Printf("%10d", duration/int64(loops*1000))

		// PUT requests
		callInLoop(ids, func(id int64) int64 {
			_, d := c.send(http.MethodPut, contactURL(server, id), bytes.NewReader(randomBody()))
			return d
		})
		// GET requests
		callInLoop(ids, func(id int64) int64 {
			_, d := c.send(http.MethodGet, contactURL(server, id), nil)
			return d
		})
		// PATCH requests
		callInLoop(ids, func(id int64) int64 {
			_, d := c.send(http.MethodPatch, contactURL(server, id)+"/favorite", bytes.NewReader([]byte(`{"favorite": true}`)))
			return d
		})
		// DELETE requests
		callInLoop(ids, func(id int64) int64 {
			_, d := c.send(http.MethodDelete, contactURL(server, id), nil)
			return d
		})
		fmt.Println()
	}
}

// client sends authenticated requests to the contacts service.
type client struct {
	server string
	token  string
	http   *http.Client
}

func contactURL(server string, id int64) string {
	return fmt.Sprintf("%s/contacts/%d", server, id)
}

func randomBody() []byte {
	body, err := json.Marshal(randomgen.Contact())
	if err != nil {
		log.Fatal().Err(err).Msg("could not marshal JSON")
	}
	return body
}

// callInLoop calls f for every id in random order and prints the average duration in
// microseconds.
func callInLoop(ids []int64, f func(id int64) int64) {
	shuffled := make([]int64, len(ids))
	copy(shuffled, ids)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration int64
	for _, id := range shuffled {
		duration += f(id)
	}
	fmt.Printf("%10d", duration/int64(len(ids)*1000))
}

func (c *client) create(body []byte) (int64, int64) {
	resBody, duration := c.send(http.MethodPost, c.server+"/contacts", bytes.NewReader(body))
	var contact model.Contact
	if err := json.Unmarshal(resBody, &contact); err != nil {
		log.Fatal().Err(err).Bytes("body", resBody).Msg("could not unmarshal JSON")
	}
	return contact.Id, duration
}

// send executes the request and returns the response body and the duration in nanoseconds.
func (c *client) send(method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	before := time.Now().UnixNano()
	res, err := c.http.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("error making http request")
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		log.Fatal().Err(err).Msg("could not read response body")
	}
	after := time.Now().UnixNano()
	if res.StatusCode >= 300 {
		log.Fatal().Int("status", res.StatusCode).Str("method", method).Str("url", requestURL).Bytes("body", resBody).Msg("unexpected response")
	}
	return resBody, after - before
}
