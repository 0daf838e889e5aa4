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

package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// RFC4648-5 base64 URL/file safe character pool
const base64Pool = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var random = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint

func Timestamp() uint64 {
	return uint64(time.Now().UnixNano())
}

func RandomString(length int) string {
	var result strings.Builder
	for count := 0; count < length; count++ {
		index := random.Intn(len(base64Pool))
		result.WriteByte(base64Pool[index])
	}
	return result.String()
}

// NewID returns a time-ordered unique identifier, e.g. "17672531887261952000-Xf3aQz_p".
// The timestamp prefix keeps lexical order aligned with creation order for ids
// generated by the same process.
func NewID() string {
	return fmt.Sprintf("%020d-%s", Timestamp(), RandomString(8))
}
