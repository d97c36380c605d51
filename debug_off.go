//go:build !ssrdebug

package ssr

const debugAssertionsEnabled = false
