// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package httpapi_test

import (
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const password = "correct-horse-1"

var _ = Describe("Auth API", func() {
	var env *apiEnv

	Context("with email verification required", func() {
		BeforeEach(func() {
			env = newAPIEnv(true)
		})

		Describe("POST /register", func() {
			It("creates the account and asks for verification", func() {
				r := env.register("Ada", "ada@example.com", password)
				Expect(r.Status).To(Equal(http.StatusCreated))
				Expect(r.Body).To(HaveKeyWithValue("ok", true))
				Expect(r.Body).To(HaveKeyWithValue("must_verify_email", true))
				Expect(env.mail.Link("verify", "ada@example.com")).To(ContainSubstring("/verify/"))
			})

			It("rejects a duplicate email regardless of case", func() {
				Expect(env.register("Ada", "ada@example.com", password).Status).To(Equal(http.StatusCreated))

				r := env.register("Other Ada", "ADA@Example.com", password)
				Expect(r.Status).To(Equal(http.StatusUnprocessableEntity))
				Expect(r.Body).To(HaveKeyWithValue("ok", false))
				Expect(r.Body["errors"]).To(HaveKey("email"))
			})

			It("reports every missing field", func() {
				r := env.call(http.MethodPost, "/register", map[string]any{}, "")
				Expect(r.Status).To(Equal(http.StatusUnprocessableEntity))
				Expect(r.Body["errors"]).To(And(HaveKey("name"), HaveKey("email"), HaveKey("password")))
				Expect(r.Body["message"]).To(ContainSubstring("more error"))
			})

			It("requires a matching confirmation", func() {
				r := env.call(http.MethodPost, "/register", map[string]any{
					"name":                  "Ada",
					"email":                 "ada@example.com",
					"password":              password,
					"password_confirmation": "something-else-2",
				}, "")
				Expect(r.Status).To(Equal(http.StatusUnprocessableEntity))
				Expect(r.Body["errors"]).To(HaveKeyWithValue("password",
					ContainElement("The password field confirmation does not match.")))
			})

			It("enforces the password policy", func() {
				r := env.register("Ada", "ada@example.com", "lettersonly")
				Expect(r.Status).To(Equal(http.StatusUnprocessableEntity))
				Expect(r.Body["errors"]).To(HaveKey("password"))
			})

			It("rejects a body that is not JSON", func() {
				req, err := http.NewRequest(http.MethodPost, env.server.URL+"/register", strings.NewReader("{nope"))
				Expect(err).NotTo(HaveOccurred())
				resp, err := env.server.Client().Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			})
		})

		Describe("POST /login", func() {
			BeforeEach(func() {
				Expect(env.register("Ada", "ada@example.com", password).Status).To(Equal(http.StatusCreated))
			})

			It("withholds a token until the email is verified", func() {
				r := env.login("ada@example.com", password)
				Expect(r.Status).To(Equal(http.StatusOK))
				Expect(r.Body).To(HaveKeyWithValue("ok", false))
				Expect(r.Body).To(HaveKeyWithValue("action", "verify_email"))
				Expect(r.Body).To(HaveKeyWithValue("message", "Please confirm your email address"))
				Expect(r.Body).NotTo(HaveKey("token"))
			})

			It("issues a token once the email is verified", func() {
				v := env.call(http.MethodGet, verifyPath(env.mail.Link("verify", "ada@example.com")), nil, "")
				Expect(v.Status).To(Equal(http.StatusOK))

				r := env.login("ada@example.com", password)
				Expect(r.Status).To(Equal(http.StatusOK))
				Expect(r.Body).To(HaveKeyWithValue("ok", true))
				Expect(r.Body["token"]).To(ContainSubstring("|"))

				user, ok := r.Body["user"].(map[string]any)
				Expect(ok).To(BeTrue())
				Expect(user).To(HaveKeyWithValue("email", "ada@example.com"))
				Expect(user).To(HaveKeyWithValue("name", "Ada"))
				Expect(user).To(HaveKeyWithValue("avatar", BeNil()))
				Expect(user["email_verified_at"]).NotTo(BeNil())
				Expect(user).NotTo(HaveKey("password_hash"))
			})
		})

		Describe("GET /verify/{id}/{signature}", func() {
			var link string

			BeforeEach(func() {
				env.register("Ada", "ada@example.com", password)
				link = verifyPath(env.mail.Link("verify", "ada@example.com"))
			})

			It("is idempotent", func() {
				Expect(env.call(http.MethodGet, link, nil, "").Status).To(Equal(http.StatusOK))
				r := env.call(http.MethodGet, link, nil, "")
				Expect(r.Status).To(Equal(http.StatusOK))
				Expect(r.Body).To(HaveKeyWithValue("ok", true))
			})

			It("rejects a tampered signature with 403", func() {
				tampered := link[:len(link)-1] + flip(link[len(link)-1])
				r := env.call(http.MethodGet, tampered, nil, "")
				Expect(r.Status).To(Equal(http.StatusForbidden))
				Expect(r.Body).To(HaveKeyWithValue("message", "Invalid verification link"))
			})

			It("returns 404 for an unknown user", func() {
				_, sig, _ := strings.Cut(strings.TrimPrefix(link, "/verify/"), "/")
				r := env.call(http.MethodGet, "/verify/01HZZZZZZZZZZZZZZZZZZZZZZZ/"+sig, nil, "")
				Expect(r.Status).To(Equal(http.StatusNotFound))
			})
		})

		Describe("POST /email/verification-notification", func() {
			BeforeEach(func() {
				env.register("Ada", "ada@example.com", password)
			})

			It("resends to an unverified user", func() {
				r := env.call(http.MethodPost, "/email/verification-notification", map[string]any{"email": "ada@example.com"}, "")
				Expect(r.Status).To(Equal(http.StatusOK))
				Expect(r.Body).To(HaveKeyWithValue("message", "Verification link sent!"))
			})

			It("returns 400 once verified or for unknown emails", func() {
				env.call(http.MethodGet, verifyPath(env.mail.Link("verify", "ada@example.com")), nil, "")

				for _, email := range []string{"ada@example.com", "nobody@example.com"} {
					r := env.call(http.MethodPost, "/email/verification-notification", map[string]any{"email": email}, "")
					Expect(r.Status).To(Equal(http.StatusBadRequest), email)
				}
			})
		})
	})

	Context("without email verification", func() {
		BeforeEach(func() {
			env = newAPIEnv(false)
			Expect(env.register("Grace", "grace@example.com", password).Status).To(Equal(http.StatusCreated))
		})

		It("answers a wrong password and an unknown email identically", func() {
			wrong := env.login("grace@example.com", "wrong-password-9")
			unknown := env.login("nobody@example.com", password)

			for _, r := range []reply{wrong, unknown} {
				Expect(r.Status).To(Equal(http.StatusUnauthorized))
				Expect(r.Body).To(HaveKeyWithValue("message", "These credentials do not match our records."))
			}
		})

		It("locks the account after repeated failures", func() {
			for range 10 {
				Expect(env.login("grace@example.com", "wrong-password-9").Status).To(Equal(http.StatusUnauthorized))
			}

			r := env.login("grace@example.com", password)
			Expect(r.Status).To(Equal(http.StatusTooManyRequests))
			Expect(r.Header.Get("Retry-After")).To(Equal("900"))

			env.clock.Advance(16 * time.Minute)
			Expect(env.login("grace@example.com", password).Status).To(Equal(http.StatusOK))
		})

		Describe("bearer tokens", func() {
			var tokenA, tokenB string

			BeforeEach(func() {
				tokenA = env.login("grace@example.com", password).Body["token"].(string)
				tokenB = env.login("grace@example.com", password).Body["token"].(string)
			})

			It("resolves the current user", func() {
				r := env.call(http.MethodGet, "/user", nil, tokenA)
				Expect(r.Status).To(Equal(http.StatusOK))
				Expect(r.Body["user"]).To(HaveKeyWithValue("email", "grace@example.com"))
			})

			It("requires a bearer", func() {
				for _, bearer := range []string{"", "garbage", tokenA + "x"} {
					r := env.call(http.MethodGet, "/user", nil, bearer)
					Expect(r.Status).To(Equal(http.StatusUnauthorized), bearer)
					Expect(r.Body).To(HaveKeyWithValue("message", "Unauthenticated."))
				}
			})

			It("logs out only the presented token", func() {
				Expect(env.call(http.MethodPost, "/logout", nil, tokenA).Status).To(Equal(http.StatusOK))

				Expect(env.call(http.MethodGet, "/user", nil, tokenA).Status).To(Equal(http.StatusUnauthorized))
				Expect(env.call(http.MethodGet, "/user", nil, tokenB).Status).To(Equal(http.StatusOK))
				Expect(env.call(http.MethodPost, "/logout", nil, tokenA).Status).To(Equal(http.StatusUnauthorized))
			})

			It("expires tokens after the default TTL", func() {
				env.clock.Advance(23 * time.Hour)
				Expect(env.call(http.MethodGet, "/user", nil, tokenA).Status).To(Equal(http.StatusOK))
				env.clock.Advance(time.Hour)
				Expect(env.call(http.MethodGet, "/user", nil, tokenA).Status).To(Equal(http.StatusUnauthorized))
			})

			It("keeps remembered tokens for thirty days", func() {
				r := env.call(http.MethodPost, "/login", map[string]any{
					"email": "grace@example.com", "password": password, "remember": true,
				}, "")
				remembered := r.Body["token"].(string)

				env.clock.Advance(29 * 24 * time.Hour)
				Expect(env.call(http.MethodGet, "/user", nil, remembered).Status).To(Equal(http.StatusOK))
				Expect(env.call(http.MethodGet, "/user", nil, tokenA).Status).To(Equal(http.StatusUnauthorized))
			})
		})

		Describe("password reset", func() {
			It("answers unknown emails with the same message", func() {
				known := env.call(http.MethodPost, "/password/email", map[string]any{"email": "grace@example.com"}, "")
				unknown := env.call(http.MethodPost, "/password/email", map[string]any{"email": "nobody@example.com"}, "")
				throttled := env.call(http.MethodPost, "/password/email", map[string]any{"email": "grace@example.com"}, "")

				for _, r := range []reply{known, unknown, throttled} {
					Expect(r.Status).To(Equal(http.StatusOK))
					Expect(r.Body).To(HaveKeyWithValue("message", known.Body["message"]))
				}
			})

			It("validates the email", func() {
				r := env.call(http.MethodPost, "/password/email", map[string]any{"email": "not-an-email"}, "")
				Expect(r.Status).To(Equal(http.StatusUnprocessableEntity))
				Expect(r.Body["errors"]).To(HaveKey("email"))
			})

			It("consumes a valid token once and revokes sessions", func() {
				session := env.login("grace@example.com", password).Body["token"].(string)
				env.call(http.MethodPost, "/password/email", map[string]any{"email": "grace@example.com"}, "")
				token := resetToken(env.mail.Link("reset", "grace@example.com"))

				reset := func(tok string) reply {
					return env.call(http.MethodPost, "/password/reset", map[string]any{
						"token":                 tok,
						"email":                 "grace@example.com",
						"password":              "new-password-2",
						"password_confirmation": "new-password-2",
					}, "")
				}

				bad := reset(strings.Repeat("0", len(token)))
				Expect(bad.Status).To(Equal(http.StatusUnprocessableEntity))
				Expect(bad.Body["errors"]).To(HaveKey("email"))

				Expect(reset(token).Status).To(Equal(http.StatusOK))
				Expect(reset(token).Status).To(Equal(http.StatusUnprocessableEntity))

				Expect(env.login("grace@example.com", password).Status).To(Equal(http.StatusUnauthorized))
				Expect(env.login("grace@example.com", "new-password-2").Status).To(Equal(http.StatusOK))
				Expect(env.call(http.MethodGet, "/user", nil, session).Status).To(Equal(http.StatusUnauthorized))
			})

			It("rejects an expired token", func() {
				env.call(http.MethodPost, "/password/email", map[string]any{"email": "grace@example.com"}, "")
				token := resetToken(env.mail.Link("reset", "grace@example.com"))
				env.clock.Advance(61 * time.Minute)

				r := env.call(http.MethodPost, "/password/reset", map[string]any{
					"token":                 token,
					"email":                 "grace@example.com",
					"password":              "new-password-2",
					"password_confirmation": "new-password-2",
				}, "")
				Expect(r.Status).To(Equal(http.StatusUnprocessableEntity))
			})
		})
	})

	Describe("routing", func() {
		BeforeEach(func() {
			env = newAPIEnv(false)
		})

		It("answers unknown routes with the envelope", func() {
			r := env.call(http.MethodGet, "/nowhere", nil, "")
			Expect(r.Status).To(Equal(http.StatusNotFound))
			Expect(r.Body).To(HaveKeyWithValue("ok", false))
		})

		It("allows configured CORS origins only", func() {
			preflight := func(origin string) string {
				req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/login", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Origin", origin)
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				resp, err := env.server.Client().Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				return resp.Header.Get("Access-Control-Allow-Origin")
			}

			Expect(preflight("http://localhost:3000")).To(Equal("http://localhost:3000"))
			Expect(preflight("https://evil.example.com")).To(BeEmpty())
		})
	})
})

func flip(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}
