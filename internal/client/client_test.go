package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-admin/internal/gateway"
	"github.com/noah-isme/tutor-admin/internal/models"
	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

type fakeTransport struct {
	requests  []gateway.Request
	responses map[string]interface{}
	err       error
	download  *models.Download
	downloads []string
}

func (f *fakeTransport) Do(ctx context.Context, req gateway.Request, out interface{}) error {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	resp, ok := f.responses[req.Method+" "+req.URL]
	if !ok || out == nil {
		return nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeTransport) Download(ctx context.Context, url string) (*models.Download, error) {
	f.downloads = append(f.downloads, url)
	return f.download, f.err
}

func mustEndpoints(t *testing.T, base string) Endpoints {
	t.Helper()
	e, err := NewEndpoints(base)
	require.NoError(t, err)
	return e
}

func TestNewEndpointsSplitsOrigin(t *testing.T) {
	e := mustEndpoints(t, "https://tutor.example.com/api/")
	assert.Equal(t, "https://tutor.example.com/api", e.API)
	assert.Equal(t, "https://tutor.example.com", e.Origin)
	assert.Equal(t, "https://tutor.example.com/api/students/", e.Collection("students"))
	assert.Equal(t, "https://tutor.example.com/api/groups/5/", e.Item("groups", 5))
	assert.Equal(t, "https://tutor.example.com/feedback/download-all/", e.OriginPath("/feedback/download-all/"))

	_, err := NewEndpoints("not a url")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeValidation))
}

func TestResourceListPageUsesCursor(t *testing.T) {
	e := mustEndpoints(t, "http://api.test/api")
	next := "http://api.test/api/students/?page=2"
	transport := &fakeTransport{responses: map[string]interface{}{
		"GET http://api.test/api/students/":        gin.H{"results": []gin.H{{"id": 1, "fullname": "Ann"}}, "next": next},
		"GET http://api.test/api/students/?page=2": gin.H{"results": []gin.H{{"id": 2, "fullname": "Bob"}}, "next": nil},
	}}
	students := NewStudents(transport, e, nil, nil)

	first, err := students.ListPage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, next, first.Cursor())

	second, err := students.ListPage(context.Background(), first.Cursor())
	require.NoError(t, err)
	assert.True(t, second.Terminal())
	assert.Equal(t, "Bob", second.Results[0].Fullname)
	assert.Equal(t, next, transport.requests[1].URL)
}

func TestResourceGetAllFollowsEveryPage(t *testing.T) {
	e := mustEndpoints(t, "http://api.test/api")
	responses := map[string]interface{}{}
	for page := 1; page <= 3; page++ {
		url := "http://api.test/api/groups/"
		if page > 1 {
			url = fmt.Sprintf("http://api.test/api/groups/?page=%d", page)
		}
		var next interface{}
		if page < 3 {
			next = fmt.Sprintf("http://api.test/api/groups/?page=%d", page+1)
		}
		responses["GET "+url] = gin.H{"results": []gin.H{{"id": page * 10, "name": fmt.Sprintf("G%d", page)}}, "next": next}
	}
	groups := NewGroups(&fakeTransport{responses: responses}, e, nil, nil)

	all, err := groups.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{all[0].ID, all[1].ID, all[2].ID})
}

func TestResourceGetAllDetectsCursorLoop(t *testing.T) {
	e := mustEndpoints(t, "http://api.test/api")
	loop := "http://api.test/api/groups/?page=2"
	groups := NewGroups(&fakeTransport{responses: map[string]interface{}{
		"GET http://api.test/api/groups/": gin.H{"results": []gin.H{}, "next": loop},
		"GET " + loop:                      gin.H{"results": []gin.H{}, "next": loop},
	}}, e, nil, nil)

	_, err := groups.GetAll(context.Background())
	require.Error(t, err)
}

func TestResourceCreateValidatesBeforeSending(t *testing.T) {
	transport := &fakeTransport{}
	students := NewStudents(transport, mustEndpoints(t, "http://api.test/api"), nil, nil)

	_, err := students.Create(context.Background(), models.Student{Fullname: "Ann", Surname: "Lee", Username: "ann", Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeValidation))
	assert.Empty(t, transport.requests)
}

func TestResourceUpdateSendsJSON(t *testing.T) {
	e := mustEndpoints(t, "http://api.test/api")
	transport := &fakeTransport{responses: map[string]interface{}{
		"PUT http://api.test/api/lessons/3/": gin.H{"id": 3, "title": "Fractions", "group": 1},
	}}
	lessons := NewLessons(transport, e, nil, nil)

	updated, err := lessons.Update(context.Background(), 3, models.Lesson{ID: 3, Title: "Fractions", Group: 1})
	require.NoError(t, err)
	assert.Equal(t, "Fractions", updated.Title)
	require.Len(t, transport.requests, 1)
	assert.Equal(t, "application/json", transport.requests[0].ContentType)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(transport.requests[0].Body, &sent))
	assert.Equal(t, "Fractions", sent["title"])
}

func TestResourceDeletePropagatesHTTPError(t *testing.T) {
	transport := &fakeTransport{err: appErrors.HTTP(http.StatusNotFound, "Not found.")}
	students := NewStudents(transport, mustEndpoints(t, "http://api.test/api"), nil, nil)

	err := students.Delete(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.StatusOf(err))
	assert.Equal(t, http.MethodDelete, transport.requests[0].Method)
}

func importRecords(n int) []models.ImportRecord {
	records := make([]models.ImportRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, models.ImportRecord{
			"fullname": fmt.Sprintf("Student %d", i),
			"surname":  "Test",
			"username": fmt.Sprintf("student%d", i),
		})
	}
	return records
}

func TestResourceImportBatchMultipartPartialFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/students/import/", func(c *gin.Context) {
		var records []map[string]string
		if err := json.Unmarshal([]byte(c.PostForm("file")), &records); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "file field must hold a JSON array"})
			return
		}
		created := 0
		rowErrors := []gin.H{}
		for i, rec := range records {
			if rec["username"] == "" {
				rowErrors = append(rowErrors, gin.H{"row": i + 1, "message": "username is required"})
				continue
			}
			created++
		}
		c.JSON(http.StatusOK, gin.H{"created": created, "updated": 0, "errors": rowErrors})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	records := importRecords(10)
	records[3]["username"] = ""

	gw := gateway.New(srv.Client(), nil, nil, nil, nil)
	students := NewStudents(gw, mustEndpoints(t, srv.URL+"/api"), nil, nil)

	result, err := students.ImportBatch(context.Background(), records)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeImportPartial))
	require.NotNil(t, result)
	assert.Equal(t, 9, result.Created)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)
	assert.Equal(t, result.Errors, appErrors.FromError(err).Details)
}

func TestResourceImportBatchJSONBody(t *testing.T) {
	e := mustEndpoints(t, "http://api.test/api")
	transport := &fakeTransport{responses: map[string]interface{}{
		"POST http://api.test/api/groups/import_json/": gin.H{"created": 1, "updated": 1, "errors": []gin.H{}},
	}}
	groups := NewGroups(transport, e, nil, nil)

	result, err := groups.ImportBatch(context.Background(), []models.ImportRecord{{"name": "A"}, {"name": "B"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, "application/json", transport.requests[0].ContentType)
	assert.JSONEq(t, `[{"name":"A"},{"name":"B"}]`, string(transport.requests[0].Body))
}

func TestResourceImportBatchKeepsServerRowErrors(t *testing.T) {
	e := mustEndpoints(t, "http://api.test/api")
	url := "POST http://api.test/api/groups/import_json/"

	t.Run("objects with extra keys", func(t *testing.T) {
		rowErr := `{"row":4,"field":"email","detail":"Enter a valid email address."}`
		transport := &fakeTransport{responses: map[string]interface{}{
			url: json.RawMessage(`{"created":9,"errors":[` + rowErr + `]}`),
		}}
		groups := NewGroups(transport, e, nil, nil)

		result, err := groups.ImportBatch(context.Background(), importRecords(10))
		require.True(t, appErrors.IsCode(err, appErrors.CodeImportPartial))
		require.NotNil(t, result)
		assert.Equal(t, 9, result.Created)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 4, result.Errors[0].Row)
		assert.Equal(t, "Enter a valid email address.", result.Errors[0].Message)
		assert.JSONEq(t, rowErr, string(result.Errors[0].Raw))
		assert.Contains(t, result.Errors[0].String(), `"field":"email"`)

		out, err := json.Marshal(result.Errors)
		require.NoError(t, err)
		assert.JSONEq(t, "["+rowErr+"]", string(out))
	})

	t.Run("plain strings", func(t *testing.T) {
		transport := &fakeTransport{responses: map[string]interface{}{
			url: json.RawMessage(`{"created":9,"errors":["Row 4: Enter a valid email address."]}`),
		}}
		groups := NewGroups(transport, e, nil, nil)

		result, err := groups.ImportBatch(context.Background(), importRecords(10))
		require.True(t, appErrors.IsCode(err, appErrors.CodeImportPartial))
		require.NotNil(t, result)
		assert.Equal(t, 9, result.Created)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 0, result.Errors[0].Row)
		assert.Equal(t, "Row 4: Enter a valid email address.", result.Errors[0].String())
		assert.Equal(t, `"Row 4: Enter a valid email address."`, string(result.Errors[0].Raw))
	})
}

func TestFeedbackClientUsesOriginEndpoints(t *testing.T) {
	e := mustEndpoints(t, "http://api.test/api")
	transport := &fakeTransport{
		download: &models.Download{Filename: "feedbacks.pdf"},
		responses: map[string]interface{}{
			"POST http://api.test/feedback/send-whatsapp/7/": gin.H{"detail": "queued", "sent": 1},
		},
	}
	feedbacks := NewFeedbacks(transport, e, nil, nil)

	_, err := feedbacks.DownloadAll(context.Background())
	require.NoError(t, err)
	_, err = feedbacks.DownloadByGroup(context.Background(), 2)
	require.NoError(t, err)
	_, err = feedbacks.DownloadByStudent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://api.test/feedback/download-all/",
		"http://api.test/feedback/download/2/",
		"http://api.test/feedback/download/student/7/",
	}, transport.downloads)

	ack, err := feedbacks.SendWhatsAppToStudent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, ack.Sent)
	_, err = feedbacks.SendWhatsAppToAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/feedback/send-whatsapp/", transport.requests[1].URL)
}

func TestAuthClientLoginAndRefresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/token/", func(c *gin.Context) {
		var req models.LoginRequest
		_ = c.ShouldBindJSON(&req)
		if req.Password != "secret" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "No active account found with the given credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access": "a1", "refresh": "r1"})
	})
	r.POST("/api/token/refresh/", func(c *gin.Context) {
		var req models.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		c.JSON(http.StatusOK, gin.H{"access": "a2-" + req.Refresh})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	auth := NewAuthClient(srv.Client(), mustEndpoints(t, srv.URL+"/api"), nil, nil)

	pair, err := auth.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, models.TokenPair{Access: "a1", Refresh: "r1"}, pair)

	_, err = auth.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.StatusOf(err))
	assert.Equal(t, "No active account found with the given credentials", appErrors.FromError(err).Message)

	refreshed, err := auth.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2-r1", refreshed.Access)
	assert.Empty(t, refreshed.Refresh)

	_, err = auth.Login(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.CodeValidation))
}
