package main

import (
	"testing"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/auth"
	"github.com/Mekazstan/paystack-forms-gateway/internal/paystack"
	"github.com/Mekazstan/paystack-forms-gateway/internal/reference"
)

func BenchmarkMakeJWT(b *testing.B) {
	secret := "test-secret"
	duration := time.Hour

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		auth.MakeJWT("forms-host", secret, duration)
	}
}

func BenchmarkValidateJWT(b *testing.B) {
	secret := "test-secret"
	token, _ := auth.MakeJWT("forms-host", secret, time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		auth.ValidateJWT(token, secret)
	}
}

func BenchmarkVerifyWebhookSignature(b *testing.B) {
	secret := "sk_test_xxx"
	payload := []byte(`{"event":"charge.success","data":{"id":302961,"domain":"test","status":"success","reference":"gf-42-abc","amount":105000,"currency":"NGN","metadata":{"entry_id":42}}}`)
	signature := paystack.Sign(payload, secret)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		paystack.VerifySignature(payload, signature, secret)
	}
}

func BenchmarkReferenceDecode(b *testing.B) {
	codec := reference.NewCodec("reference-secret")
	ref := codec.Encode(reference.IDs{EntryID: 42, FeedID: 7, FormID: 3})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		codec.Decode(ref)
	}
}
