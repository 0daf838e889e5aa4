// Copyright 2023 Listing Notifier <dev@listingnotifier.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tokenString, err := MakeAndSerializeToken("api-client", "a secret")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := ParseAndVerifyToken(tokenString, "a secret")
	require.NoError(t, err)
	assert.Equal(t, "api-client", claims.Subject)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestTokenWrongSecret(t *testing.T) {
	tokenString, err := MakeAndSerializeToken("api-client", "a secret")
	require.NoError(t, err)

	_, err = ParseAndVerifyToken(tokenString, "another secret")
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	_, err := ParseAndVerifyToken("this is not a token", "a secret")
	assert.Error(t, err)
}
