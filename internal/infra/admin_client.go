package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	APIKeyHeader         = "X-API-Key"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// ErrUnsuccessful is returned when the admin service answers 2xx but the
// envelope reports success=false.
var ErrUnsuccessful = errors.New("admin service reported failure")

// APIError is a non-2xx answer from the admin service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("admin service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("admin service returned status %d: %s", e.StatusCode, e.Message)
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *APIError) Permanent() bool {
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type ProductInfo struct {
	ID       uint64          `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"is_active"`
}

type InventoryItem struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type DeductInventoryRequest struct {
	OrderNumber string          `json:"order_number"`
	Items       []InventoryItem `json:"items"`
}

// OrderSyncRequest is the flat order snapshot the admin service stores.
type OrderSyncRequest struct {
	OrderNumber       string          `json:"order_number"`
	UserID            *uint64         `json:"user_id,omitempty"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	PaymentMethod     string          `json:"payment_method,omitempty"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	Shipping          decimal.Decimal `json:"shipping"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	ShippingFirstName string          `json:"shipping_first_name"`
	ShippingLastName  string          `json:"shipping_last_name"`
	ShippingEmail     string          `json:"shipping_email"`
	ShippingPhone     string          `json:"shipping_phone"`
	ShippingAddress1  string          `json:"shipping_address_1"`
	ShippingAddress2  string          `json:"shipping_address_2,omitempty"`
	ShippingCity      string          `json:"shipping_city"`
	ShippingState     string          `json:"shipping_state"`
	ShippingPostcode  string          `json:"shipping_postal_code"`
	ShippingCountry   string          `json:"shipping_country"`
	BillingFirstName  string          `json:"billing_first_name"`
	BillingLastName   string          `json:"billing_last_name"`
	BillingEmail      string          `json:"billing_email"`
	BillingPhone      string          `json:"billing_phone"`
	BillingAddress1   string          `json:"billing_address_1"`
	BillingAddress2   string          `json:"billing_address_2,omitempty"`
	BillingCity       string          `json:"billing_city"`
	BillingState      string          `json:"billing_state"`
	BillingPostcode   string          `json:"billing_postal_code"`
	BillingCountry    string          `json:"billing_country"`
	Notes             string          `json:"notes,omitempty"`
	Items             []OrderSyncItem `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
}

type OrderSyncItem struct {
	ProductID   uint64          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderStatusRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
	PaymentStatus  *string `json:"payment_status,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ProductForm is a prepared multipart body for product create/update.
type ProductForm struct {
	Body        []byte
	ContentType string
}

type AdminClient struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	uploadClient *http.Client
}

func NewAdminClient(baseURL, apiKey string, timeout, uploadTimeout time.Duration) *AdminClient {
	return &AdminClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{Timeout: uploadTimeout},
	}
}

// GetProductById returns nil, nil when the product does not exist.
func (c *AdminClient) GetProductById(ctx context.Context, id uint64) (*ProductInfo, error) {
	var p ProductInfo
	err := c.doJSON(ctx, c.httpClient, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, "", &p)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetProductsBatch returns the products the admin service knows about.
// Unknown ids are simply absent from the result.
func (c *AdminClient) GetProductsBatch(ctx context.Context, ids []uint64) ([]ProductInfo, error) {
	var out []ProductInfo
	body := map[string][]uint64{"ids": ids}
	if err := c.doJSON(ctx, c.httpClient, http.MethodPost, "/products/batch", body, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) DeductInventoryForOrder(ctx context.Context, req DeductInventoryRequest, idempotencyKey string) error {
	return c.doJSON(ctx, c.httpClient, http.MethodPost, "/inventory/deduct-for-order", req, idempotencyKey, nil)
}

func (c *AdminClient) SyncOrder(ctx context.Context, req OrderSyncRequest, idempotencyKey string) error {
	return c.doJSON(ctx, c.httpClient, http.MethodPost, "/orders/sync", req, idempotencyKey, nil)
}

func (c *AdminClient) UpdateOrderStatus(ctx context.Context, orderNumber string, req OrderStatusRequest, idempotencyKey string) error {
	path := "/orders/" + url.PathEscape(orderNumber) + "/status"
	return c.doJSON(ctx, c.httpClient, http.MethodPut, path, req, idempotencyKey, nil)
}

func (c *AdminClient) CancelOrder(ctx context.Context, orderNumber string, req CancelOrderRequest, idempotencyKey string) error {
	path := "/orders/" + url.PathEscape(orderNumber) + "/cancel"
	return c.doJSON(ctx, c.httpClient, http.MethodPut, path, req, idempotencyKey, nil)
}

// CreateProduct and UpdateProduct use the upload client, which has a longer
// timeout than regular calls.
func (c *AdminClient) CreateProduct(ctx context.Context, form ProductForm) (*ProductInfo, error) {
	var p ProductInfo
	if err := c.doMultipart(ctx, http.MethodPost, "/products", form, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *AdminClient) UpdateProduct(ctx context.Context, id uint64, form ProductForm) (*ProductInfo, error) {
	var p ProductInfo
	if err := c.doMultipart(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), form, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *AdminClient) doJSON(ctx context.Context, client *http.Client, method, path string, body any, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyKeyHeader, idempotencyKey)
	}
	return c.do(client, req, out)
}

func (c *AdminClient) doMultipart(ctx context.Context, method, path string, form ProductForm, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(form.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.ContentType)
	return c.do(c.uploadClient, req, out)
}

func (c *AdminClient) do(client *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s %s: %w", req.Method, req.URL.Path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil {
			msg = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response from %s %s: %w", req.Method, req.URL.Path, decodeErr)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s %s: %s", ErrUnsuccessful, req.Method, req.URL.Path, env.Message)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data from %s %s: %w", req.Method, req.URL.Path, err)
		}
	}
	return nil
}

// NewProductForm writes fields and an optional image into a multipart body.
// Fields must already be string-encoded; see processors.ProductFormFields.
func NewProductForm(fields [][2]string, image *Upload) (ProductForm, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return ProductForm{}, err
		}
	}
	if image != nil {
		part, err := w.CreateFormFile("image", image.Filename)
		if err != nil {
			return ProductForm{}, err
		}
		if _, err := part.Write(image.Data); err != nil {
			return ProductForm{}, err
		}
	}
	if err := w.Close(); err != nil {
		return ProductForm{}, err
	}
	return ProductForm{Body: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}

type Upload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}
