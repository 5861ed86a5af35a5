package client_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jzx17/ctsdk/pkg/client"
)

// setEnv sets key for the duration of the current spec.
func setEnv(key, value string) {
	previous, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, previous)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

var _ = Describe("Config", func() {
	Describe("NewConfig", func() {
		It("applies the platform defaults", func() {
			cfg := client.NewConfig("shop", "id", "secret")
			Expect(cfg.AuthURL).To(Equal("https://auth.sphere.io"))
			Expect(cfg.APIURL).To(Equal("https://api.sphere.io"))
			Expect(cfg.Scopes).To(Equal([]string{"manage_project"}))
			Expect(cfg.PageSize).To(Equal(int64(500)))
			Expect(cfg.Timeout).To(Equal(30 * time.Second))
			Expect(cfg.Validate()).To(Succeed())
		})

		It("qualifies scopes with the project key", func() {
			cfg := client.NewConfig("shop", "id", "secret")
			cfg.Scopes = []string{"view_products", "manage_orders"}
			Expect(cfg.RawScopes()).To(Equal([]string{"view_products:shop", "manage_orders:shop"}))
		})

		It("does not print the secret", func() {
			cfg := client.NewConfig("shop", "id", "top-secret")
			Expect(cfg.String()).NotTo(ContainSubstring("top-secret"))
			Expect(cfg.String()).To(ContainSubstring("shop"))
		})
	})

	Describe("Validate", func() {
		It("reports every problem at once", func() {
			cfg := &client.Config{PageSize: 1000}
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("CTP_PROJECT_KEY is required"))
			Expect(err.Error()).To(ContainSubstring("CTP_CLIENT_SECRET is required"))
			Expect(err.Error()).To(ContainSubstring("CTP_PAGE_SIZE must be between 1 and 500"))
			Expect(err.Error()).To(ContainSubstring("CTP_TIMEOUT must be > 0"))
		})
	})

	Describe("ConfigFromEnv", func() {
		BeforeEach(func() {
			setEnv("CTP_PROJECT_KEY", "shop")
			setEnv("CTP_CLIENT_ID", "id")
			setEnv("CTP_CLIENT_SECRET", "secret")
		})

		It("falls back to defaults", func() {
			setEnv("CTP_AUTH_URL", "")
			setEnv("CTP_SCOPES", "")
			setEnv("CTP_PAGE_SIZE", "")
			setEnv("CTP_TIMEOUT", "")

			cfg, err := client.ConfigFromEnv()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ProjectKey).To(Equal("shop"))
			Expect(cfg.AuthURL).To(Equal(client.DefaultAuthURL))
			Expect(cfg.Scopes).To(Equal([]string{client.DefaultScope}))
			Expect(cfg.PageSize).To(Equal(client.DefaultPageSize))
			Expect(cfg.Timeout).To(Equal(client.DefaultTimeout))
		})

		It("reads overrides", func() {
			setEnv("CTP_API_URL", "https://api.europe-west1.gcp.commercetools.com")
			setEnv("CTP_SCOPES", "view_products, view_orders")
			setEnv("CTP_PAGE_SIZE", "200")
			setEnv("CTP_TIMEOUT", "5s")

			cfg, err := client.ConfigFromEnv()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.APIURL).To(Equal("https://api.europe-west1.gcp.commercetools.com"))
			Expect(cfg.Scopes).To(Equal([]string{"view_products", "view_orders"}))
			Expect(cfg.PageSize).To(Equal(int64(200)))
			Expect(cfg.Timeout).To(Equal(5 * time.Second))
		})

		It("rejects unparsable values", func() {
			setEnv("CTP_TIMEOUT", "soon")
			_, err := client.ConfigFromEnv()
			Expect(err).To(MatchError(ContainSubstring("parse CTP_TIMEOUT")))
		})

		It("rejects a missing secret", func() {
			setEnv("CTP_CLIENT_SECRET", "")
			_, err := client.ConfigFromEnv()
			Expect(err).To(MatchError(ContainSubstring("CTP_CLIENT_SECRET is required")))
		})
	})
})
