// Package jitter предоставляет утилиты для добавления случайности в интервалы отступления (backoff),
// чтобы повторные запросы к внешнему сервису не приходили одновременно.
package jitter

import (
	"math/rand/v2"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Source — источник случайных чисел в [0, 1).
type Source interface {
	Float64() float64
}

// globalSource использует потокобезопасный глобальный генератор math/rand/v2.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Duration возвращает продолжительность с применённым джиттером.
// Результат находится в диапазоне [d, d*(1+jitterFactor)].
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	return DurationWithSource(d, jitterFactor, globalSource{})
}

// DurationWithSource возвращает продолжительность с джиттером, используя заданный источник случайности.
// Полезно для тестирования или когда требуется детерминированное поведение.
func DurationWithSource(d time.Duration, jitterFactor float64, src Source) time.Duration {
	if d <= 0 || jitterFactor <= 0 {
		return d
	}

	return d + time.Duration(src.Float64()*jitterFactor*float64(d))
}

// ExponentialBackoff вычисляет экспоненциальное отступление с джиттером.
// base — начальная длительность отступления,
// max — максимальная длительность отступления,
// attempt — номер текущей попытки повтора (нумерация с нуля),
// jitterFactor — коэффициент джиттера (например, 0.5 означает +50%).
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	return Duration(Backoff(base, max, attempt), jitterFactor)
}

// Backoff возвращает base*2^attempt, ограниченное сверху значением max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}

	return min(backoff, max)
}
