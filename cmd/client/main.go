package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	api "gitlab.com/dirk.krummacker/address-book/pkg/model"
)

var (
	baseURL = flag.String("url", "http://localhost:8080", "base URL of the service")
	token   = flag.String("token", os.Getenv("ADDRESS_BOOK_TOKEN"), "access token of the user whose contacts are created")
)

// Measures the average duration in microseconds of each request type against a running service.
// Rate limiting must be switched off on the service for meaningful numbers.
//
// Usage example on the command line:
// > ADDRESS_BOOK_TOKEN=... go run main.go -url=http://localhost:8080
func main() {
	flag.Parse()
	if *token == "" {
		fmt.Println("an access token is required, pass -token or set ADDRESS_BOOK_TOKEN")
		os.Exit(1)
	}
	jsonBody, err := json.Marshal(api.ContactSchema{
		Name:     "Marcus",
		Surname:  "Antonius",
		Email:    "marcus@antonius.example",
		Phone:    "+39 999 777 555",
		Birthday: "1983-01-14",
	})
	if err != nil {
		panic(err)
	}

	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET    DELETE ")
	fmt.Println("---------------------------------------------------")
	sizes := []int{1000, 5000, 10000, 50000, 100000}
	for _, loops := range sizes {
		firstID, _ := sendPostRequest(bytes.NewReader(jsonBody))
		fmt.Printf("%10d", loops)
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				_, d := sendPostRequest(bytes.NewReader(jsonBody))
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// PUT requests
			f := func(id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodPut, bytes.NewReader(jsonBody))
			}
			callInLoop(firstID, loops, f)
		}
		{
			// GET requests
			f := func(id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodGet, nil)
			}
			callInLoop(firstID, loops, f)
		}
		{
			// DELETE requests
			f := func(id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodDelete, nil)
			}
			callInLoop(firstID, loops, f)
		}
		sendPutGetDeleteRequest(firstID, http.MethodDelete, nil)
		fmt.Println()
	}
}

func callInLoop(firstID int64, loops int, f func(id int64) int64) {
	ids := createRandomSliceWithIDs(firstID+1, loops)
	var duration int64
	for _, id := range ids {
		duration += f(id)
	}
	fmt.Printf("%10d", duration/int64(loops*1000))
}

func createRandomSliceWithIDs(firstID int64, loops int) []int64 {
	ids := make([]int64, 0, loops)
	for i := 0; i < loops; i++ {
		ids = append(ids, firstID+int64(i))
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return ids
}

func sendPostRequest(bodyReader io.Reader) (int64, int64) {
	resBody, duration := sendRequest(http.MethodPost, *baseURL+"/api/contacts", bodyReader)
	var contact api.ContactResponse
	if err := json.Unmarshal(resBody, &contact); err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return contact.Id, duration
}

func sendPutGetDeleteRequest(id int64, method string, bodyReader io.Reader) int64 {
	requestURL := fmt.Sprintf("%s/api/contacts/%d", *baseURL, id)
	_, duration := sendRequest(method, requestURL, bodyReader)
	return duration
}

func sendRequest(method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	req.Header.Set("Authorization", "Bearer "+*token)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	before := time.Now()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		fmt.Printf("%s %s answered %d: %s\n", method, requestURL, res.StatusCode, resBody)
		os.Exit(1)
	}
	return resBody, time.Since(before).Nanoseconds()
}
