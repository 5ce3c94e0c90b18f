package notify

import (
	"fmt"
	"strings"

	"stock_watcher/internal/domain"
)

// ExpiryLayout is how reactivation deadlines are shown to the user.
const ExpiryLayout = "2006-01-02 15:04:05Z"

func Subject(product *domain.Product) string {
	if product.Name != "" {
		return fmt.Sprintf("Hurry!!! %s", product.Name)
	}
	return fmt.Sprintf("Hurry!!! %d", product.ID)
}

// RenderEmail lists every SKU of the batch with its reactivation link.
func RenderEmail(product *domain.Product, items []domain.NotifyItem) string {
	var sb strings.Builder
	sb.WriteString("Available:\n")
	sb.WriteString(product.ProductPageURL)
	sb.WriteString("\n\n")
	sb.WriteString(skuLabel(len(items)))
	sb.WriteString(":\n")
	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %d => %s", it.Name, it.Sku, reactivationLine(it))
	}
	return sb.String()
}

// RenderChat is the WhatsApp flavour of RenderEmail, using its bold and
// italic markers.
func RenderChat(product *domain.Product, items []domain.NotifyItem) string {
	var sb strings.Builder
	sb.WriteString("*Hurry!!!*\n\nAvailable:\n")
	sb.WriteString(product.ProductPageURL)
	sb.WriteString("\n\n")
	sb.WriteString(skuLabel(len(items)))
	sb.WriteString(":\n")
	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: _%d_ => %s", it.Name, it.Sku, reactivationLine(it))
	}
	return sb.String()
}

func reactivationLine(it domain.NotifyItem) string {
	return fmt.Sprintf(
		"Notifications for this SKU are paused until you reactivate it at %s (valid until %s).",
		it.ReactivationURL,
		it.ValidTo.UTC().Format(ExpiryLayout),
	)
}

func skuLabel(n int) string {
	if n > 1 {
		return "skus"
	}
	return "sku"
}
