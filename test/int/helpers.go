package int

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func envOrDefault(env, def string) string {
	if val, ok := os.LookupEnv(env); ok && val != "" {
		return val
	}
	return def
}

var (
	baseURL  = "http://" + envOrDefault("MADRASAH_INT_ADDR", "localhost:5000")
	mongoURI = envOrDefault("MADRASAH_INT_MONGO_URI", "mongodb://localhost:27017")
	database = envOrDefault("MONGO_DATABASE", "madrasahDB")
	client   = &http.Client{Timeout: 10 * time.Second}
)

func cleanupMongo() {
	m, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
	Expect(err).To(BeNil())
	defer m.Disconnect(context.Background())
	db := m.Database(database)

	collections := []string{"users", "events", "notices"}
	for _, v := range collections {
		_, err := db.Collection(v).DeleteMany(context.Background(), bson.M{})
		Expect(err).To(BeNil())
	}
}

type response struct {
	Status int
	Body   []byte
}

func call(method, path string, body interface{}) response {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).To(BeNil())
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, baseURL+path, r)
	Expect(err).To(BeNil())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := client.Do(req)
	Expect(err).To(BeNil())
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	Expect(err).To(BeNil())
	return response{Status: res.StatusCode, Body: b}
}

func (r response) Object() map[string]interface{} {
	var m map[string]interface{}
	Expect(json.Unmarshal(r.Body, &m)).To(Succeed())
	return m
}

func (r response) List() []map[string]interface{} {
	var l []map[string]interface{}
	Expect(json.Unmarshal(r.Body, &l)).To(Succeed())
	return l
}

func registerUser(email, role string) string {
	res := call(http.MethodPost, "/users", map[string]interface{}{"email": email, "role": role, "name": "Test " + role})
	Expect(res.Status).To(Equal(http.StatusOK))
	return res.Object()["insertedId"].(string)
}
