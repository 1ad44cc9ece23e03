// Package ollama talks to an Ollama server through its native API.
//
// The generator is the live answer backend of the original deployment
// (llama3:8b-instruct). Hosts may be given with or without the /v1 suffix
// used by the OpenAI-compatible endpoint; it is stripped here.
package ollama
