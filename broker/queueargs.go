// Copyright 2025 The amqpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package broker

import (
	"github.com/mitchellh/mapstructure"

	"github.com/amqpd/amqpd/internal/field"
)

// QueueArgs is the typed projection of the handful of `arguments` keys this
// broker understands; everything else in the table round-trips untouched.
// This is the extension hook calls for ("adding those features is
// purely an extension of the method dispatch table").
type QueueArgs struct {
	MessageTTL *int64 `mapstructure:"x-message-ttl"`
	Expires    *int64 `mapstructure:"x-expires"`
	MaxLength  *int64 `mapstructure:"x-max-length"`
}

// DecodeQueueArgs projects the known keys of t into a QueueArgs. Unknown
// keys are ignored here (they remain in the original field.Table the
// caller still holds for round-trip fidelity). Known keys are decoded with
// weak typing, so a numeric string or a boolean is coerced to an integer;
// a value that cannot be coerced is reported as an error.
func DecodeQueueArgs(t field.Table) (QueueArgs, error) {
	raw := make(map[string]any, len(t))
	for _, pair := range t {
		raw[pair.Name] = fieldValueToNative(pair.Value)
	}

	var args QueueArgs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &args,
	})
	if err != nil {
		return QueueArgs{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return QueueArgs{}, err
	}
	return args, nil
}

func fieldValueToNative(v field.Value) any {
	switch vv := v.(type) {
	case field.ShortShortInt:
		return int64(vv)
	case field.ShortShortUInt:
		return int64(vv)
	case field.ShortInt:
		return int64(vv)
	case field.ShortUInt:
		return int64(vv)
	case field.LongInt:
		return int64(vv)
	case field.LongUInt:
		return int64(vv)
	case field.LongLongInt:
		return int64(vv)
	case field.LongLongUInt:
		return int64(vv)
	case field.ShortString:
		return string(vv)
	case field.LongString:
		return string(vv)
	case field.Boolean:
		return bool(vv)
	default:
		return nil
	}
}
