package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"rentals/src/db"
	"rentals/src/lib"
	"rentals/src/middlewares"
	"rentals/src/models"
	"rentals/src/types"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB    *gorm.DB
	Token string

	productSrv  *httptest.Server
	customerSrv *httptest.Server
	notifySrv   *httptest.Server

	missingCustomerID uuid.UUID
	rentedItemID      uuid.UUID
}

func NewMockDB() *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening sqlite database", err)
	}
	inner, err := gormDB.DB()
	if err != nil {
		log.Fatalf("Error accessing inner db instance: %s", err.Error())
	}
	inner.SetMaxOpenConns(1)
	return gormDB
}

func generateTestJWT(username string) string {
	claims := &types.Claims{
		Username: username,
		Role:     "staff",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	return signed
}

func (s *TestSuite) SetupSuite() {
	os.Setenv("REMOTE_CALL_TIMEOUT", "500ms")
	registerValidators()

	d := NewMockDB()
	db.NewDB(d)
	s.DB = d
	if err := d.AutoMigrate(&models.Rental{}, &models.RentalTimeline{}); err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	s.missingCustomerID = uuid.New()
	s.rentedItemID = uuid.New()

	s.productSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v1/products/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
			fmt.Fprintf(w, `{"id":%q,"name":"Test Gown","category_name":"Formal"}`, id)
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/api/v1/inventory/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/v1/inventory/")
			status := types.INVENTORY_AVAILABLE
			if id == s.rentedItemID.String() {
				status = types.INVENTORY_RENTED
			}
			fmt.Fprintf(w, `{"id":%q,"status":%q,"size":"M","color":"black"}`, id, status)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	s.customerSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v1/customers/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/v1/customers/")
			if id == s.missingCustomerID.String() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, `{"id":%q,"name":"Test Customer","phone_number":"555-0100"}`, id)
		case strings.HasPrefix(r.URL.Path, "/api/v1/customer-addresses/"):
			id := strings.TrimPrefix(r.URL.Path, "/api/v1/customer-addresses/")
			fmt.Fprintf(w, `{"id":%q,"line1":"1 Test St","city":"Testville"}`, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	s.notifySrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	productsClient = lib.NewProductsClientWithBaseURL(s.productSrv.URL, lib.ContextTokenProvider{})
	customersClient = lib.NewCustomersClientWithBaseURL(s.customerSrv.URL, lib.ContextTokenProvider{})
	notifyClient = lib.NewNotificationsClientWithBaseURL(s.notifySrv.URL, lib.ContextTokenProvider{})

	s.Token = generateTestJWT("tester")
}

func (s *TestSuite) TearDownSuite() {
	s.productSrv.Close()
	s.customerSrv.Close()
	s.notifySrv.Close()
	inner, err := s.DB.DB()
	if err != nil {
		log.Printf("Error accessing inner db instance: %s\n", err.Error())
		return
	}
	inner.Close()
}

func newTestRouter() http.Handler {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(middlewares.AuthMiddleware)
	rentalHandlers(apiv1)
	reportHandlers(apiv1)
	return router
}

func (s *TestSuite) request(method, url string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		assert.Nil(s.T(), err)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, url, reader)
	assert.Nil(s.T(), err)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, req)
	return w
}

func (s *TestSuite) createBody() map[string]any {
	start := time.Now().UTC().AddDate(0, 0, 7)
	return map[string]any{
		"product_id":          uuid.NewString(),
		"inventory_item_id":   uuid.NewString(),
		"customer_id":         uuid.NewString(),
		"shipping_address_id": uuid.NewString(),
		"start_date":          start.Format("2006-01-02"),
		"end_date":            start.AddDate(0, 0, 2).Format("2006-01-02"),
		"rental_price":        200.0,
		"daily_rate":          100.0,
		"security_deposit":    50.0,
	}
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestRequiresAuth() {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/rentals", nil)
	newTestRouter().ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestCreateRental() {
	w := s.request("POST", "/api/v1/rentals", s.createBody())
	assert.Equal(s.T(), 201, w.Code)

	sjson := w.Body.String()
	assert.True(s.T(), strings.HasPrefix(gjson.Get(sjson, "rental_number").String(), "RNT-"))
	assert.NotEmpty(s.T(), gjson.Get(sjson, "id").String())
}

func (s *TestSuite) TestCreateRentalValidation() {
	s.Run("Should batch binding errors", func() {
		body := s.createBody()
		delete(body, "customer_id")
		body["end_date"] = "not-a-date"

		w := s.request("POST", "/api/v1/rentals", body)
		assert.Equal(s.T(), 400, w.Code)

		sjson := w.Body.String()
		assert.True(s.T(), gjson.Get(sjson, "errors.CustomerID").Exists())
		assert.True(s.T(), gjson.Get(sjson, "errors.EndDate").Exists())
	})

	s.Run("Should reject end date before start date", func() {
		body := s.createBody()
		body["end_date"] = time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

		w := s.request("POST", "/api/v1/rentals", body)
		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject an unavailable inventory item", func() {
		body := s.createBody()
		body["inventory_item_id"] = s.rentedItemID.String()

		w := s.request("POST", "/api/v1/rentals", body)
		assert.Equal(s.T(), 400, w.Code)
		assert.True(s.T(), gjson.Get(w.Body.String(), "errors.inventory_item_id").Exists())
	})
}

func (s *TestSuite) TestGetRentalComposite() {
	body := s.createBody()
	body["customer_id"] = s.missingCustomerID.String()
	w := s.request("POST", "/api/v1/rentals", body)
	assert.Equal(s.T(), 201, w.Code)
	id := gjson.Get(w.Body.String(), "id").String()

	w = s.request("GET", fmt.Sprintf("/api/v1/rentals/%s", id), nil)
	assert.Equal(s.T(), 200, w.Code)

	sjson := w.Body.String()
	assert.Equal(s.T(), int64(3), gjson.Get(sjson, "data.rental_days").Int())
	assert.Equal(s.T(), 250.0, gjson.Get(sjson, "data.total_amount").Float())
	assert.Equal(s.T(), "Test Gown", gjson.Get(sjson, "data.product.name").String())
	assert.Equal(s.T(), "1 Test St", gjson.Get(sjson, "data.shipping_address.line1").String())
	// The customer service answered 404: the field is null, the read succeeds.
	assert.Equal(s.T(), gjson.Null, gjson.Get(sjson, "data.customer").Type)
}

func (s *TestSuite) TestGetRentalNotFound() {
	w := s.request("GET", fmt.Sprintf("/api/v1/rentals/%s", uuid.NewString()), nil)
	assert.Equal(s.T(), 404, w.Code)
}

func (s *TestSuite) TestGetRentalStrict() {
	w := s.request("POST", "/api/v1/rentals", s.createBody())
	assert.Equal(s.T(), 201, w.Code)
	id := gjson.Get(w.Body.String(), "id").String()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	saved := customersClient
	customersClient = lib.NewCustomersClientWithBaseURL(broken.URL, lib.ContextTokenProvider{})
	defer func() { customersClient = saved }()

	s.Run("Should degrade to nulls by default", func() {
		w := s.request("GET", fmt.Sprintf("/api/v1/rentals/%s", id), nil)
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), gjson.Null, gjson.Get(w.Body.String(), "data.customer").Type)
	})

	s.Run("Should fail loudly when strict", func() {
		w := s.request("GET", fmt.Sprintf("/api/v1/rentals/%s?strict=true", id), nil)
		assert.Equal(s.T(), 502, w.Code)
		unavailable := gjson.Get(w.Body.String(), "unavailable").Array()
		assert.NotEmpty(s.T(), unavailable)
	})
}

func (s *TestSuite) TestStatusLifecycle() {
	w := s.request("POST", "/api/v1/rentals", s.createBody())
	assert.Equal(s.T(), 201, w.Code)
	id := gjson.Get(w.Body.String(), "id").String()
	today := time.Now().UTC().Format("2006-01-02")

	s.Run("Should activate a pending rental", func() {
		w := s.request("PUT", fmt.Sprintf("/api/v1/rentals/%s/status", id), map[string]any{
			"status":            "active",
			"actual_start_date": today,
			"version":           1,
		})
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), "active", gjson.Get(w.Body.String(), "data.status").String())
		assert.Equal(s.T(), int64(2), gjson.Get(w.Body.String(), "data.version").Int())
	})

	s.Run("Should reject a stale version with 409", func() {
		w := s.request("PUT", fmt.Sprintf("/api/v1/rentals/%s/status", id), map[string]any{
			"status":             "returned",
			"actual_return_date": today,
			"version":            1,
		})
		assert.Equal(s.T(), 409, w.Code)
	})

	s.Run("Should reject an illegal transition with 422", func() {
		w := s.request("PUT", fmt.Sprintf("/api/v1/rentals/%s/status", id), map[string]any{
			"status":  "pending",
			"version": 2,
		})
		assert.Equal(s.T(), 422, w.Code)
	})

	s.Run("Should return the rental and record the trail", func() {
		w := s.request("PUT", fmt.Sprintf("/api/v1/rentals/%s/status", id), map[string]any{
			"status":             "returned",
			"actual_return_date": today,
			"version":            2,
		})
		assert.Equal(s.T(), 200, w.Code)

		w = s.request("GET", fmt.Sprintf("/api/v1/rentals/%s/timeline", id), nil)
		assert.Equal(s.T(), 200, w.Code)
		sjson := w.Body.String()
		assert.Equal(s.T(), int64(3), gjson.Get(sjson, "count").Int())
		statuses := gjson.Get(sjson, "data.#.status").Array()
		assert.EqualValues(s.T(), types.RENTAL_PENDING.Code(), statuses[0].Int())
		assert.EqualValues(s.T(), types.RENTAL_ACTIVE.Code(), statuses[1].Int())
		assert.EqualValues(s.T(), types.RENTAL_RETURNED.Code(), statuses[2].Int())
	})
}

func (s *TestSuite) TestUpdateRentalEndpoint() {
	w := s.request("POST", "/api/v1/rentals", s.createBody())
	assert.Equal(s.T(), 201, w.Code)
	id := gjson.Get(w.Body.String(), "id").String()

	w = s.request("PUT", fmt.Sprintf("/api/v1/rentals/%s", id), map[string]any{
		"rental_price": 300.0,
		"version":      1,
	})
	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), 300.0, gjson.Get(w.Body.String(), "data.rental_price").Float())

	w = s.request("PUT", fmt.Sprintf("/api/v1/rentals/%s", id), map[string]any{
		"rental_price": 400.0,
		"version":      1,
	})
	assert.Equal(s.T(), 409, w.Code)
}

func (s *TestSuite) TestDeleteRental() {
	w := s.request("POST", "/api/v1/rentals", s.createBody())
	assert.Equal(s.T(), 201, w.Code)
	id := gjson.Get(w.Body.String(), "id").String()

	w = s.request("DELETE", fmt.Sprintf("/api/v1/rentals/%s", id), nil)
	assert.Equal(s.T(), 204, w.Code)

	w = s.request("GET", fmt.Sprintf("/api/v1/rentals/%s", id), nil)
	assert.Equal(s.T(), 404, w.Code)

	// History outlives the soft delete.
	w = s.request("GET", fmt.Sprintf("/api/v1/rentals/%s/timeline", id), nil)
	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), int64(1), gjson.Get(w.Body.String(), "count").Int())
}

func (s *TestSuite) TestListRentalsEndpoint() {
	w := s.request("GET", "/api/v1/rentals?page=1&per_page=5", nil)
	assert.Equal(s.T(), 200, w.Code)
	assert.True(s.T(), gjson.Get(w.Body.String(), "count").Exists())
}

func (s *TestSuite) TestDashboardReport() {
	w := s.request("GET", "/api/v1/reports/rentals/dashboard", nil)
	assert.Equal(s.T(), 200, w.Code)
	assert.True(s.T(), gjson.Get(w.Body.String(), "data.total_rentals").Exists())
}

func (s *TestSuite) TestRevenueReport() {
	year := time.Now().UTC().Year()
	w := s.request("GET", fmt.Sprintf("/api/v1/reports/rentals/revenue?year=%d", year), nil)
	assert.Equal(s.T(), 200, w.Code)

	sjson := w.Body.String()
	assert.Equal(s.T(), int64(year), gjson.Get(sjson, "data.year").Int())
	assert.Len(s.T(), gjson.Get(sjson, "data.monthly").Array(), 12)
}

func TestSuiteRun(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
