package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nguide/admin/internal/auth"
)

const (
	testAppBinary         = "./nguide_admin_test_app"
	testAppPort           = "8089"
	testServiceApiPortApi = "8091"
	testServiceApiPortBg  = "8092"
	testAppURL            = "http://localhost:" + testAppPort
	testServiceApiURL     = "http://localhost:" + testServiceApiPortApi
	testJwtSecret         = "integration-test-secret"
	testDbName            = "nguide_integration_test"
	startupTimeout        = 15 * time.Second
	pingEndpoint          = testAppURL + "/v1/ping"
)

// TestMain builds the binary, starts an API and a worker process against a
// scratch database and runs the tests against them. Without MONGO_URI the
// suite is skipped.
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	if os.Getenv("MONGO_URI") == "" {
		log.Println("MONGO_URI not set, skipping integration tests")
		return
	}

	defer func() {
		_ = os.Remove(testAppBinary)
	}()

	log.Println("Integration Test Setup: Building application...")
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(buildOutput))
		os.Exit(1)
	}
	defer dropTestDatabase()

	commonEnv := append(os.Environ(),
		"JWT_SECRET="+testJwtSecret,
		"MONGO_DB_NAME="+testDbName,
		"GIN_MODE=release",
		"SMTP_HOST=",
		"PUBLIC_BASE_URL=https://tours.example.com",
		"RATE_LIMIT_BUCKET_SIZE=50",
		"RATE_LIMIT_REFILL_RATE=50",
	)

	apiCmd := exec.Command(testAppBinary, "-m", "api")
	apiCmd.Env = append(append([]string{}, commonEnv...), "API_PORT="+testAppPort, "SERVICE_API_PORT="+testServiceApiPortApi)
	apiCmd.Stderr = os.Stderr
	apiCmd.Stdout = os.Stdout
	if err := apiCmd.Start(); err != nil {
		log.Printf("Failed to start API process: %v", err)
		os.Exit(1)
	}

	bgCmd := exec.Command(testAppBinary, "-m", "bg")
	bgCmd.Env = append(append([]string{}, commonEnv...), "SERVICE_API_PORT="+testServiceApiPortBg)
	bgCmd.Stderr = os.Stderr
	bgCmd.Stdout = os.Stdout
	if err := bgCmd.Start(); err != nil {
		_ = apiCmd.Process.Kill()
		log.Printf("Failed to start Background Worker process: %v", err)
		os.Exit(1)
	}

	defer func() {
		for _, cmd := range []*exec.Cmd{bgCmd, apiCmd} {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				_ = cmd.Process.Kill()
				continue
			}
			_, _ = cmd.Process.Wait()
		}
		log.Println("Integration Test Teardown: Application processes stopped.")
	}()

	startTime := time.Now()
	ready := false
	for time.Since(startTime) < startupTimeout {
		resp, err := http.Get(pingEndpoint)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK && string(body) == "pong" {
				ready = true
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !ready {
		log.Printf("Application failed to start within %v", startupTimeout)
		return
	}

	// Give the worker a moment to connect to Redis.
	time.Sleep(2 * time.Second)

	exitCode := m.Run()
	log.Printf("Integration Test Teardown: Tests finished with exit code %d.", exitCode)
}

func dropTestDatabase() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		log.Printf("Cleanup: failed to connect to MongoDB: %v", err)
		return
	}
	defer func() { _ = client.Disconnect(ctx) }()
	if err := client.Database(testDbName).Drop(ctx); err != nil {
		log.Printf("Cleanup: failed to drop %s: %v", testDbName, err)
	}
}

func staffToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateJWT("integration-staff", auth.RoleStaff, testJwtSecret, time.Hour)
	require.NoError(t, err)
	return token
}

// doJSON sends body as JSON and decodes a JSON object response.
func doJSON(t *testing.T, method, url string, body interface{}, token string) (int, map[string]interface{}, http.Header) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded, resp.Header
}

func quotationPayload(email string) map[string]interface{} {
	return map[string]interface{}{
		"countryCode": "thailand",
		"dateStart":   "2025-01-10",
		"dateEnd":     "2025-01-13",
		"customer": map[string]interface{}{
			"name":  "Malee",
			"email": email,
			"phone": "0812345678",
		},
		"travelers":  map[string]interface{}{"adults": 2, "children": 1},
		"unitPrices": map[string]interface{}{"pricePerAdult": 1000, "pricePerChild": 500},
		"rooms":      map[string]interface{}{"adultRooms": 1, "adultRoomPrice": 800},
		"flight":     map[string]interface{}{"included": true, "adultPrice": 300},
		"food":       map[string]interface{}{"totals": map[string]interface{}{"totalFoodPrice": 200}},
		"package":    map[string]interface{}{"discountPercent": 10, "additionalCost": 50},
	}
}

func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestIntegration_StaffRoutesRequireToken(t *testing.T) {
	status, body, _ := doJSON(t, http.MethodGet, testAppURL+"/v1/quotations", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestIntegration_QuotationShareFlow(t *testing.T) {
	token := staffToken(t)
	customerEmail := fmt.Sprintf("malee+%d@example.com", time.Now().UnixNano())

	// Create
	status, created, _ := doJSON(t, http.MethodPost, testAppURL+"/v1/quotations", quotationPayload(customerEmail), token)
	require.Equal(t, http.StatusCreated, status, "create response: %v", created)
	id := int64(created["id"].(float64))
	number := created["quotationNumber"].(string)
	assert.True(t, strings.HasPrefix(number, "QT-"))
	assert.Equal(t, "TH", created["countryCode"])
	assert.Equal(t, 5180.0, created["calculated"].(map[string]interface{})["grandTotal"])

	// Share, asking for the customer email
	shareURL := fmt.Sprintf("%s/v1/quotations/%d/generate-access-code", testAppURL, id)
	status, share, _ := doJSON(t, http.MethodPost, shareURL, map[string]interface{}{"notifyCustomer": true}, token)
	require.Equal(t, http.StatusOK, status, "share response: %v", share)
	code := share["accessCode"].(string)
	assert.Regexp(t, `^\d{6}$`, code)
	assert.Equal(t, float64(1), share["shareCount"])
	assert.Nil(t, share["expiresAt"])

	// Sharing again keeps the code
	status, again, _ := doJSON(t, http.MethodPost, shareURL, nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, code, again["accessCode"])
	assert.Equal(t, float64(2), again["shareCount"])

	// Wrong code and right code, addressed by quotation number
	status, denied, _ := doJSON(t, http.MethodPost, testAppURL+"/v1/quotations/verify", map[string]interface{}{"quotationId": number, "accessCode": wrongCode(code)}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, denied["valid"])

	status, verified, _ := doJSON(t, http.MethodPost, testAppURL+"/v1/quotations/verify", map[string]interface{}{"quotationId": number, "accessCode": code}, "")
	require.Equal(t, http.StatusOK, status, "verify response: %v", verified)
	assert.Equal(t, true, verified["valid"])
	accessToken := verified["token"].(string)

	// Public read
	publicURL := fmt.Sprintf("%s/v1/quotations/%d/public", testAppURL, id)
	status, view, _ := doJSON(t, http.MethodGet, publicURL, nil, accessToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, number, view["quotationNumber"])
	assert.NotContains(t, view, "sharing")

	// A token for one quotation does not open another
	status, _, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/quotations/%d/public", testAppURL, id+1000), nil, accessToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	// The worker mailed the code to the customer
	mail := waitForOutbox(t, customerEmail)
	assert.Contains(t, mail["subject"], number)
	assert.Contains(t, mail["body"], code)

	// Regenerating invalidates the old token
	status, regenerated, _ := doJSON(t, http.MethodPost, fmt.Sprintf("%s/v1/quotations/%d/regenerate-access-code", testAppURL, id), nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, code, regenerated["accessCode"])
	status, _, _ = doJSON(t, http.MethodGet, publicURL, nil, accessToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Deleted quotations are gone for everyone
	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/v1/quotations/%d", testAppURL, id), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	status, _, _ = doJSON(t, http.MethodPost, testAppURL+"/v1/quotations/verify", map[string]interface{}{"quotationId": id, "accessCode": regenerated["accessCode"]}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestIntegration_TourLifecycle(t *testing.T) {
	token := staffToken(t)
	title := fmt.Sprintf("Hanoi Old Quarter %d", time.Now().UnixNano())

	status, tour, _ := doJSON(t, http.MethodPost, testAppURL+"/v1/tours", map[string]interface{}{
		"title":       title,
		"countryCode": "vn",
		"dateStart":   "2025-06-01",
		"dateEnd":     "2025-06-03",
	}, token)
	require.Equal(t, http.StatusCreated, status, "create tour response: %v", tour)
	assert.Equal(t, float64(3), tour["days"])
	assert.Equal(t, float64(2), tour["nights"])
	slug := tour["slug"].(string)
	assert.True(t, strings.HasSuffix(slug, "-vn"), slug)

	status, listing, header := doJSON(t, http.MethodGet, testAppURL+"/v1/tours?country=VN&pageSize=5", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, header.Get("X-Total-Count"))
	assert.Equal(t, "5", header.Get("X-Page-Size"))
	assert.NotEmpty(t, listing["items"])

	status, bySlug, _ := doJSON(t, http.MethodGet, testAppURL+"/v1/tours/slug/"+slug, nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, tour["id"], bySlug["id"])

	status, deleted, _ := doJSON(t, http.MethodDelete, fmt.Sprintf("%s/v1/tours/%d", testAppURL, int64(tour["id"].(float64))), nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, deleted["hardDeleted"])
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

// waitForOutbox polls the service API until the worker has captured a
// message for the address.
func waitForOutbox(t *testing.T, address string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		status, body, _ := doJSON(t, http.MethodPost, testServiceApiURL+"/api", map[string]interface{}{
			"method":    "getTestEmail",
			"arguments": []string{address},
		}, "")
		if status == http.StatusOK {
			return body["data"].(map[string]interface{})
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("no email captured for %s", address)
	return nil
}
