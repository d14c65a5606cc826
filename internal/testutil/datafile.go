package testutil

// Datafile is a small but complete project used across package tests.
//
//   - exp-basic: two variations split 50/50, no audiences, "wl-user" whitelisted into control.
//   - exp-targeted: chrome AND adult audiences.
//   - exp-paused: not running.
//   - exp-zero-traffic: running with no traffic allocated.
//   - exp-mutex-a / exp-mutex-b: mutually exclusive group "g1", each taking half the group.
//   - flag-checkout: feature test exp-feature (chrome only), then rollout-1 whose first
//     rule targets adults with zero traffic, second targets chrome, then everyone else.
//   - flag-dark: rollout only, everyone else gets a disabled variation.
//   - flag-empty: neither experiments nor rollout.
//   - flag-held: covered by holdout-1 which holds out all traffic.
const Datafile = `{
  "version": "4",
  "projectId": "proj-1",
  "accountId": "acct-1",
  "revision": "42",
  "sdkKey": "sdk-key-1",
  "environmentKey": "production",
  "botFiltering": false,
  "sendFlagDecisions": true,
  "attributes": [
    {"id": "a1", "key": "browser"},
    {"id": "a2", "key": "age"},
    {"id": "a3", "key": "app_version"}
  ],
  "audiences": [
    {"id": "aud-chrome", "name": "Chrome users", "conditions": "[\"and\", [\"or\", [\"or\", {\"name\": \"browser\", \"type\": \"custom_attribute\", \"value\": \"chrome\"}]]]"},
    {"id": "aud-adult", "name": "legacy placeholder", "conditions": "[\"or\", {\"name\": \"age\", \"type\": \"custom_attribute\", \"match\": \"exists\"}]"},
    {"id": "aud-broken", "name": "Broken", "conditions": "not json"}
  ],
  "typedAudiences": [
    {"id": "aud-adult", "name": "Adults", "conditions": ["and", ["or", {"name": "age", "type": "custom_attribute", "match": "ge", "value": 18}]]},
    {"id": "aud-modern", "name": "Modern app", "conditions": ["or", {"name": "app_version", "type": "custom_attribute", "match": "semver_ge", "value": "2.0"}]},
    {"id": "aud-premium", "name": "Premium segment", "conditions": ["or", {"name": "odp.audiences", "type": "third_party_dimension", "match": "qualified", "value": "premium"}]}
  ],
  "experiments": [
    {
      "id": "1001", "key": "exp-basic", "status": "Running", "layerId": "l1",
      "audienceIds": [],
      "variations": [
        {"id": "1002", "key": "control"},
        {"id": "1003", "key": "treatment"}
      ],
      "trafficAllocation": [
        {"entityId": "1002", "endOfRange": 5000},
        {"entityId": "1003", "endOfRange": 10000}
      ],
      "forcedVariations": {"wl-user": "control", "wl-broken": "missing"}
    },
    {
      "id": "1101", "key": "exp-targeted", "status": "Running", "layerId": "l2",
      "audienceIds": ["aud-chrome"],
      "audienceConditions": ["and", "aud-chrome", "aud-adult"],
      "variations": [
        {"id": "1102", "key": "a"},
        {"id": "1103", "key": "b"}
      ],
      "trafficAllocation": [
        {"entityId": "1102", "endOfRange": 5000},
        {"entityId": "1103", "endOfRange": 10000}
      ],
      "forcedVariations": {}
    },
    {
      "id": "1201", "key": "exp-paused", "status": "Paused", "layerId": "l3",
      "audienceIds": [],
      "variations": [{"id": "1202", "key": "only"}],
      "trafficAllocation": [{"entityId": "1202", "endOfRange": 10000}],
      "forcedVariations": {"wl-user": "only"}
    },
    {
      "id": "1301", "key": "exp-zero-traffic", "status": "Running", "layerId": "l4",
      "audienceIds": [],
      "variations": [{"id": "1302", "key": "only"}],
      "trafficAllocation": [],
      "forcedVariations": {}
    },
    {
      "id": "2001", "key": "exp-feature", "status": "Running", "layerId": "l5",
      "audienceIds": ["aud-chrome"],
      "variations": [
        {"id": "2002", "key": "feature-on", "featureEnabled": true, "variables": [
          {"id": "v-color", "value": "red"},
          {"id": "v-count", "value": "7"},
          {"id": "v-price", "value": "19.5"},
          {"id": "v-extra", "value": "true"},
          {"id": "v-config", "value": "{\"a\": 2}"}
        ]}
      ],
      "trafficAllocation": [{"entityId": "2002", "endOfRange": 10000}],
      "forcedVariations": {}
    }
  ],
  "groups": [
    {
      "id": "g1", "policy": "random",
      "trafficAllocation": [
        {"entityId": "3001", "endOfRange": 5000},
        {"entityId": "3002", "endOfRange": 10000}
      ],
      "experiments": [
        {
          "id": "3001", "key": "exp-mutex-a", "status": "Running", "layerId": "l6",
          "audienceIds": [],
          "variations": [{"id": "3011", "key": "a-only"}],
          "trafficAllocation": [{"entityId": "3011", "endOfRange": 10000}],
          "forcedVariations": {}
        },
        {
          "id": "3002", "key": "exp-mutex-b", "status": "Running", "layerId": "l7",
          "audienceIds": [],
          "variations": [{"id": "3021", "key": "b-only"}],
          "trafficAllocation": [{"entityId": "3021", "endOfRange": 10000}],
          "forcedVariations": {}
        }
      ]
    }
  ],
  "rollouts": [
    {
      "id": "rollout-1",
      "experiments": [
        {
          "id": "4001", "key": "4001", "status": "Running", "layerId": "rollout-1",
          "audienceIds": ["aud-adult"],
          "variations": [{"id": "4011", "key": "rule-1-on", "featureEnabled": true}],
          "trafficAllocation": [{"entityId": "4011", "endOfRange": 0}]
        },
        {
          "id": "4002", "key": "4002", "status": "Running", "layerId": "rollout-1",
          "audienceIds": ["aud-chrome"],
          "variations": [{"id": "4021", "key": "rule-2-on", "featureEnabled": true, "variables": [
            {"id": "v-color", "value": "green"}
          ]}],
          "trafficAllocation": [{"entityId": "4021", "endOfRange": 10000}]
        },
        {
          "id": "4003", "key": "4003", "status": "Running", "layerId": "rollout-1",
          "audienceIds": [],
          "variations": [{"id": "4031", "key": "everyone-on", "featureEnabled": true}],
          "trafficAllocation": [{"entityId": "4031", "endOfRange": 10000}]
        }
      ]
    },
    {
      "id": "rollout-2",
      "experiments": [
        {
          "id": "4101", "key": "4101", "status": "Running", "layerId": "rollout-2",
          "audienceIds": [],
          "variations": [{"id": "4111", "key": "everyone-off", "featureEnabled": false}],
          "trafficAllocation": [{"entityId": "4111", "endOfRange": 10000}]
        }
      ]
    },
    {
      "id": "rollout-3",
      "experiments": [
        {
          "id": "4201", "key": "4201", "status": "Running", "layerId": "rollout-3",
          "audienceIds": [],
          "variations": [{"id": "4211", "key": "held-on", "featureEnabled": true}],
          "trafficAllocation": [{"entityId": "4211", "endOfRange": 10000}]
        }
      ]
    }
  ],
  "featureFlags": [
    {
      "id": "5001", "key": "flag-checkout", "rolloutId": "rollout-1", "experimentIds": ["2001"],
      "variables": [
        {"id": "v-color", "key": "color", "type": "string", "defaultValue": "blue"},
        {"id": "v-count", "key": "count", "type": "integer", "defaultValue": "1"},
        {"id": "v-price", "key": "price", "type": "double", "defaultValue": "9.99"},
        {"id": "v-extra", "key": "extra", "type": "boolean", "defaultValue": "false"},
        {"id": "v-config", "key": "config", "type": "string", "subType": "json", "defaultValue": "{\"a\": 1}"}
      ]
    },
    {"id": "5002", "key": "flag-dark", "rolloutId": "rollout-2", "experimentIds": [], "variables": []},
    {"id": "5003", "key": "flag-empty", "rolloutId": "", "experimentIds": [], "variables": []},
    {"id": "5004", "key": "flag-held", "rolloutId": "rollout-3", "experimentIds": [], "variables": []}
  ],
  "holdouts": [
    {
      "id": "6001", "key": "holdout-1", "status": "Running",
      "audienceIds": [],
      "variations": [{"id": "6002", "key": "ho_off", "featureEnabled": false}],
      "trafficAllocation": [{"entityId": "6002", "endOfRange": 10000}],
      "includedFlags": ["5004"],
      "excludedFlags": []
    }
  ]
}`
