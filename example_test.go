// Copyright (C) 2025 M. Felden. All Rights Reserved.

package treewalk_test

import (
	"fmt"
	"log"

	treewalk "github.com/mfelden/treewalk"
	"github.com/mfelden/treewalk/decode"
	"github.com/mfelden/treewalk/value"
)

func ExampleGet() {
	data, err := decode.JSON([]byte(`{
		"servers": [
			{"name": "alpha", "region": "eu", "load": 0.31},
			{"name": "beta",  "region": "us", "load": 0.74},
			{"name": "gamma", "region": "eu", "load": 0.56}
		]
	}`))
	if err != nil {
		log.Fatal(err)
	}

	names, err := treewalk.Get(data, "servers[?region=='eu'].name[]")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(names.JSON())

	peak, err := treewalk.Get(data, "servers[].load|$max")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(peak.JSON())
	// Output:
	// ["alpha","gamma"]
	// 0.74
}

func ExampleSet() {
	data, err := decode.JSON([]byte(`{"counters": {"a": 1, "b": 2}}`))
	if err != nil {
		log.Fatal(err)
	}

	if _, err := treewalk.Set(data, "counters.*", "$inc"); err != nil {
		log.Fatal(err)
	}
	if _, err := treewalk.Set(data, "meta.updated", true); err != nil {
		log.Fatal(err)
	}
	fmt.Println(data.JSON())
	// Output:
	// {"counters":{"a":2,"b":3},"meta":{"updated":true}}
}

func ExampleUnset() {
	data, err := decode.JSON([]byte(`{"users": [{"id": 1}, {"id": 2}, {"id": 3}]}`))
	if err != nil {
		log.Fatal(err)
	}

	if _, err := treewalk.Unset(data, "users[?id>1]"); err != nil {
		log.Fatal(err)
	}
	fmt.Println(data.JSON())
	// Output:
	// {"users":[{"id":1}]}
}

func ExampleRunFilterFunction() {
	v, err := treewalk.RunFilterFunction("$strip|$title", value.String("  grace hopper  "))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v.JSON())
	// Output:
	// "Grace Hopper"
}
