// Package client is the NexusTrust Go SDK.
//
// It wraps the trust service HTTP API: recording declarations, reading
// aggregated scores, checking ad-hoc assertions and inspecting the signed
// audit chains.
//
// # Reading a score
//
// Score reads are public:
//
//	c, err := client.New("https://trust.example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	score, err := c.GetScore(ctx, "agent-42")
//	fmt.Println(score.Overall, score.Category)
//
// # Recording a declaration
//
// When the service runs with auth enabled, declarations need a bearer token
// carrying the trust:declare scope (trustctl token issues one):
//
//	c, _ := client.New(baseURL, client.WithBearerToken(token))
//	res, err := c.CreateDeclaration(ctx, client.DeclarationRequest{
//	    AgentID:   "agent-42",
//	    Assertion: "meets the published latency baseline",
//	    Evidence: []client.Evidence{
//	        {Type: "technical", Description: "load test", URL: "https://reports.example.com/42"},
//	    },
//	    Factors: map[string]float64{"technical": 0.9},
//	})
//
// # Errors
//
// Non-2xx responses are returned as *APIError. Use errors.Is with
// ErrNotFound, ErrValidation, ErrUnauthorized or ErrIntegrity to branch on
// the kind of failure.
//
// # Verifying offline
//
// ServiceKey returns the Ed25519 key that signs every declaration and audit
// entry, so fetched chains can be checked without trusting the transport.
package client
