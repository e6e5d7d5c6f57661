package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cloudmail/config"
)

func testClient() *Client {
	return New(config.ProviderConfig{
		URL:     "https://project.example.co",
		AnonKey: "anon-key",
	})
}

func TestTableQueryURL(t *testing.T) {
	c := testClient()

	url := c.Table("emails").Eq("folder", "inbox").Order("date", true).URL()

	assert.Contains(t, url, "https://project.example.co/rest/v1/emails?")
	assert.Contains(t, url, "folder=eq.inbox")
	assert.Contains(t, url, "order=date.desc")
	assert.Contains(t, url, "select=%2A")
}

func TestTableQueryBoolPredicate(t *testing.T) {
	c := testClient()

	url := c.Table("emails").EqBool("starred", true).Order("date", false).URL()

	assert.Contains(t, url, "starred=eq.true")
	assert.Contains(t, url, "order=date.asc")
}

func TestTableQueryEscapesValues(t *testing.T) {
	c := testClient()

	url := c.Table("attachments").Eq("email_id", "id with spaces").URL()

	assert.NotContains(t, url, " ")
	assert.Contains(t, url, "email_id=eq.id+with+spaces")
}

func TestPublicURL(t *testing.T) {
	c := testClient()

	url := c.PublicURL("attachments", "1700000000-report final.pdf")

	assert.Equal(t, "https://project.example.co/storage/v1/object/public/attachments/1700000000-report%20final.pdf", url)
}

func TestEscapeKeyKeepsSeparators(t *testing.T) {
	assert.Equal(t, "a/b%20c", escapeKey("a/b c"))
}

func TestAPIMessage(t *testing.T) {
	assert.Equal(t, "boom", apiMessage([]byte(`{"message":"boom"}`)))
	assert.Equal(t, "boom", apiMessage([]byte(`{"msg":"boom"}`)))
	assert.Equal(t, "boom", apiMessage([]byte(`{"error_description":"boom"}`)))
	assert.Equal(t, "boom", apiMessage([]byte(`{"error":"boom"}`)))
	assert.Empty(t, apiMessage([]byte(`not json`)))
	assert.Empty(t, apiMessage([]byte(`{}`)))
}
