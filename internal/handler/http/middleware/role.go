package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

// RequirePayrollAdmin requires payroll_admin or owner role
func RequirePayrollAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.HandleError(w, jwt.ErrInvalidToken)
			return
		}

		roleStr, ok := claims["role"].(string)
		if !ok {
			response.HandleError(w, jwt.ErrInsufficientRole)
			return
		}

		if !jwt.CanAdministerPayroll(jwt.Role(roleStr)) {
			response.HandleError(w, jwt.ErrInsufficientRole)
			return
		}

		next.ServeHTTP(w, r)
	})
}
