package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/dashboard/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"import_id":"abc"}`)
	frame := encodeWireFormat(258, payload)

	require.Len(t, frame, 5+len(payload))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(258), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, payload, frame[5:])
}

func TestSchemaCatalogCoversImportCompleted(t *testing.T) {
	entry, ok := schemaCatalog[events.ImportCompletedEventType]
	require.True(t, ok)

	var schema struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal([]byte(entry.Schema), &schema))

	// Every field of the payload must be declared since additional properties are rejected.
	encoded, err := json.Marshal(events.ImportCompleted{})
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))
	for field := range fields {
		require.Contains(t, schema.Properties, field)
	}
	for _, field := range schema.Required {
		require.Contains(t, fields, field)
	}
}

func TestSchemaRegistryClientRegistersMissingSubject(t *testing.T) {
	var registered string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/activity_imports-value/versions/latest":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/subjects/activity_imports-value/versions":
			body, _ := io.ReadAll(r.Body)
			registered = string(body)
			_, _ = w.Write([]byte(`{"id":17}`))
		default:
			http.Error(w, "unexpected", http.StatusTeapot)
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "activity_imports-value", importCompletedSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Contains(t, registered, `"schemaType":"JSON"`)
}

func TestSchemaRegistryClientReusesLatestVersion(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		_, _ = w.Write([]byte(`{"id":5}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_imports-value", importCompletedSchema)
	require.NoError(t, err)
	require.Equal(t, 5, id)
	require.Zero(t, posts)
}

func TestSchemaRegistryClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_imports-value", importCompletedSchema)
	require.ErrorContains(t, err, "boom")
}
