package main

import (
	"fmt"
	"math/big"
	"strings"
)

func formatGwei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(v, big.NewInt(1_000_000_000))
	return r.FloatString(2)
}

func formatEther(v *big.Int) string {
	if v == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(v, big.NewInt(1_000_000_000_000_000_000))
	return r.FloatString(6)
}

// parseETH converts a positive decimal ETH amount to wei; digits past 18 decimals are dropped.
func parseETH(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if s[0] == '-' {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	in := s
	s = strings.TrimPrefix(s, "+")
	intStr, frac, _ := strings.Cut(s, ".")
	if (intStr == "" && frac == "") || !isDigits(intStr) || !isDigits(frac) {
		return nil, fmt.Errorf("invalid amount %q", in)
	}
	intPart := new(big.Int)
	if intStr != "" {
		intPart.SetString(intStr, 10)
	}
	wei := new(big.Int).Mul(intPart, big.NewInt(1_000_000_000_000_000_000))
	if frac != "" {
		if len(frac) > 18 {
			frac = frac[:18]
		}
		frac += strings.Repeat("0", 18-len(frac))
		fracInt, _ := new(big.Int).SetString(frac, 10)
		wei.Add(wei, fracInt)
	}
	if wei.Sign() == 0 {
		return nil, fmt.Errorf("amount %q is zero", in)
	}
	return wei, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
