package api

import "github.com/mezonai/starchain/star"

type RequestValidationReq struct {
	Address string `json:"address"`
}

type ValidateSignatureReq struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type RegisterStarReq struct {
	Address string    `json:"address"`
	Star    star.Star `json:"star"`
}

// MessageSignatureValid marks a session whose challenge signature was accepted.
const MessageSignatureValid = "valid"

type SessionStatus struct {
	Address          string `json:"address"`
	RequestTimeStamp int64  `json:"requestTimeStamp"`
	Message          string `json:"message"`
	ValidationWindow int64  `json:"validationWindow"`
	MessageSignature string `json:"messageSignature,omitempty"`
}

type ValidateSignatureResp struct {
	RegisterStar bool          `json:"registerStar"`
	Status       SessionStatus `json:"status"`
}

type BlockCountResp struct {
	Count uint64 `json:"count"`
}

type ChainValidationResp struct {
	Valid      bool     `json:"valid"`
	HashErrors []uint64 `json:"hashErrors"`
	LinkErrors []uint64 `json:"linkErrors"`
}

type HealthResp struct {
	Status     string `json:"status"`
	BlockCount uint64 `json:"blockCount"`
}
