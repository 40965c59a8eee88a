package metrics

const namespace = "birdo"
