package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"launchpad-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, payload []byte) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  testWebhookSecret,
	})
	return signed.Header
}

func TestWebhookVerifier(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)

	t.Run("missing signature", func(t *testing.T) {
		_, err := v.Verify([]byte(`{}`), "")
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := signedPayload(t, []byte(`{"id":"evt_1","object":"event","type":"ping"}`))
		_, err := v.Verify([]byte(`{"id":"evt_2","object":"event","type":"ping"}`), header)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("unconfigured secret rejects everything", func(t *testing.T) {
		payload := []byte(`{"id":"evt_1","object":"event","type":"ping"}`)
		_, err := NewWebhookVerifier("").Verify(payload, signedPayload(t, payload))
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("checkout completed", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_checkout",
			"object": "event",
			"type": "checkout.session.completed",
			"data": {"object": {
				"id": "cs_test_123",
				"object": "checkout.session",
				"customer": "cus_123",
				"subscription": "sub_123",
				"customer_details": {"email": "ada@example.com", "name": "Ada"},
				"metadata": {"plan": "rocket", "utm_source": "ads"}
			}}
		}`)
		event, err := v.Verify(payload, signedPayload(t, payload))
		require.NoError(t, err)
		require.NotNil(t, event.Checkout)
		assert.Equal(t, domain.EventCheckoutCompleted, event.Type)
		assert.Equal(t, "cs_test_123", event.Checkout.SessionID)
		assert.Equal(t, "cus_123", event.Checkout.CustomerID)
		assert.Equal(t, "sub_123", event.Checkout.SubscriptionID)
		assert.Equal(t, "ada@example.com", event.Checkout.CustomerEmail)
		assert.Equal(t, "rocket", event.Checkout.Metadata["plan"])
	})

	t.Run("invoice payment failed", func(t *testing.T) {
		payload := []byte(`{
			"id": "evt_inv",
			"object": "event",
			"type": "invoice.payment_failed",
			"data": {"object": {
				"id": "in_1",
				"object": "invoice",
				"customer": "cus_9",
				"customer_email": "bob@example.com",
				"subscription": "sub_9",
				"amount_due": 99700,
				"currency": "usd",
				"attempt_count": 2
			}}
		}`)
		event, err := v.Verify(payload, signedPayload(t, payload))
		require.NoError(t, err)
		require.NotNil(t, event.Invoice)
		assert.Equal(t, "sub_9", event.Invoice.SubscriptionID)
		assert.Equal(t, int64(99700), event.Invoice.AmountDue)
		assert.Equal(t, "bob@example.com", event.Invoice.CustomerEmail)
	})

	t.Run("signed event that does not decode", func(t *testing.T) {
		payload := []byte(`{"id":"evt_bad","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"plan":5}}}}`)
		event, err := v.Verify(payload, signedPayload(t, payload))
		require.NoError(t, err)
		assert.Equal(t, "evt_bad", event.ID)
		assert.Nil(t, event.Checkout)
		assert.Error(t, event.DecodeErr)
	})

	t.Run("unknown type carries no payload", func(t *testing.T) {
		payload := []byte(`{"id":"evt_x","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`)
		event, err := v.Verify(payload, signedPayload(t, payload))
		require.NoError(t, err)
		assert.Nil(t, event.Checkout)
		assert.Nil(t, event.Subscription)
		assert.Nil(t, event.Invoice)
	})
}

func stripeList(url string, hasMore bool, data ...string) string {
	items := "[]"
	if len(data) > 0 {
		items = "["
		for i, d := range data {
			if i > 0 {
				items += ","
			}
			items += d
		}
		items += "]"
	}
	b, _ := json.Marshal(hasMore)
	return `{"object":"list","url":"` + url + `","has_more":` + string(b) + `,"data":` + items + `}`
}

func newTestProvider(t *testing.T, mux *http.ServeMux) *StripeProvider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return newStripeProvider("sk_test_123", srv.URL)
}

func TestStripeProvider_NotConfigured(t *testing.T) {
	p := NewStripeProvider("")
	assert.False(t, p.IsConfigured())

	_, err := p.EnsurePrice(context.Background(), domain.Plan{ID: "rocket"})
	assert.True(t, errors.Is(err, domain.ErrProviderNotConfigured))
}

func TestStripeProvider_EnsurePrice(t *testing.T) {
	plan := domain.DefaultPlans("prod_rocket", "prod_galaxy")[0]

	t.Run("reuses matching price", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/prices", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "prod_rocket", r.URL.Query().Get("product"))
			_, _ = w.Write([]byte(stripeList("/v1/prices", false,
				`{"id":"price_wrong","object":"price","unit_amount":5000,"recurring":{"interval":"month"}}`,
				`{"id":"price_ok","object":"price","unit_amount":99700,"recurring":{"interval":"month"}}`,
			)))
		})

		id, err := newTestProvider(t, mux).EnsurePrice(context.Background(), plan)
		require.NoError(t, err)
		assert.Equal(t, "price_ok", id)
	})

	t.Run("creates price when none match", func(t *testing.T) {
		created := false
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/prices", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(stripeList("/v1/prices", false)))
				return
			}
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "99700", r.PostForm.Get("unit_amount"))
			assert.Equal(t, "month", r.PostForm.Get("recurring[interval]"))
			created = true
			_, _ = w.Write([]byte(`{"id":"price_new","object":"price"}`))
		})

		id, err := newTestProvider(t, mux).EnsurePrice(context.Background(), plan)
		require.NoError(t, err)
		assert.Equal(t, "price_new", id)
		assert.True(t, created)
	})
}

func TestStripeProvider_CreateCheckoutSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "price_ok", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "rocket", r.PostForm.Get("metadata[plan]"))
		assert.Equal(t, "rocket", r.PostForm.Get("subscription_data[metadata][plan]"))
		assert.Equal(t, "ada@example.com", r.PostForm.Get("customer_email"))
		_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_1"}`))
	})

	session, err := newTestProvider(t, mux).CreateCheckoutSession(context.Background(), domain.CheckoutParams{
		PriceID:       "price_ok",
		CustomerEmail: "ada@example.com",
		SuccessURL:    "https://app.test/onboarding/welcome?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://app.test/pricing",
		Metadata:      map[string]string{"plan": "rocket"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", session.URL)
}

func TestStripeProvider_FindCustomerIDByEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "known@example.com" {
			_, _ = w.Write([]byte(stripeList("/v1/customers", false, `{"id":"cus_known","object":"customer"}`)))
			return
		}
		_, _ = w.Write([]byte(stripeList("/v1/customers", false)))
	})
	p := newTestProvider(t, mux)

	id, err := p.FindCustomerIDByEmail(context.Background(), "Known@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_known", id)

	_, err = p.FindCustomerIDByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStripeProvider_ListSubscriptions(t *testing.T) {
	sub := `{
		"id": "sub_1",
		"object": "subscription",
		"status": "active",
		"created": 1700000000,
		"customer": {"id": "cus_1", "object": "customer", "email": "ada@example.com"},
		"items": {"object": "list", "data": [{
			"id": "si_1",
			"object": "subscription_item",
			"price": {
				"id": "price_1",
				"object": "price",
				"unit_amount": 199700,
				"currency": "usd",
				"recurring": {"interval": "month"},
				"product": {"id": "prod_galaxy", "object": "product", "name": "Galaxy"}
			}
		}]}
	}`

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, subscriptionExpand)
		_, _ = w.Write([]byte(stripeList("/v1/subscriptions", true, sub)))
	})

	page, err := newTestProvider(t, mux).ListSubscriptions(context.Background(), domain.SubscriptionListParams{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, "sub_1", page.NextCursor)

	got := page.Data[0]
	assert.Equal(t, "Galaxy", got.PlanName)
	assert.Equal(t, "prod_galaxy", got.ProductID)
	assert.Equal(t, int64(199700), got.AmountCents)
	assert.Equal(t, "ada@example.com", got.CustomerEmail)
	assert.Equal(t, "month", got.Interval)
}
