package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ebosacco/ussd-gateway/pkg/domain"
)

func renderSession() *domain.Session {
	sess := domain.NewSession(domain.SessionKey{Msisdn: "256700000001", SessionID: "S1", Shortcode: "*284#"}, "welcome")
	sess.CustomerName = "Jane Doe"
	sess.SetField("amount", "5000")
	sess.SetField("billerType", "NWSC")
	return sess
}

func TestRenderInterpolatesFields(t *testing.T) {
	node := &domain.Node{
		Kind: domain.NodeKindMenu,
		Text: "Pay UGX ${amount} for ${billerType}?\n1. Confirm",
	}
	got := Render(node, renderSession())
	assert.Equal(t, "Pay UGX 5000 for NWSC?\n1. Confirm", got)
}

func TestRenderCustomerNameAndMsisdn(t *testing.T) {
	node := &domain.Node{
		Kind: domain.NodeKindStatic,
		Text: "Hello ${customerName} (${msisdn})",
	}
	got := Render(node, renderSession())
	assert.Equal(t, "Hello Jane Doe (256700000001)", got)
}

func TestRenderLeavesUnresolvedPlaceholders(t *testing.T) {
	node := &domain.Node{
		Kind: domain.NodeKindStatic,
		Text: "Balance: ${balanceText}",
	}
	got := Render(node, renderSession())
	assert.Equal(t, "Balance: ${balanceText}", got, "typos must stay visible, not render as holes")
}

func TestRenderTranslates(t *testing.T) {
	sess := renderSession()
	sess.Language = "runyankore"
	node := &domain.Node{
		Kind: domain.NodeKindStatic,
		Text: "Welcome to EBO SACCO",
	}
	got := Render(node, sess)
	assert.Equal(t, "Tushangaire EBO SACCO", got)
}
