package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger returns a middleware that logs HTTP requests against an
// injected logger, matching every other component's construction
// style.
func Logger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			if req.URL.Path == "/health" {
				return nil
			}

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Str("user_agent", req.UserAgent()).
				Msg("http request")

			return nil
		}
	}
}

// ErrorLogger returns a middleware that logs request errors.
func ErrorLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				log.Error().
					Err(err).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Msg("request error")
			}
			return err
		}
	}
}
