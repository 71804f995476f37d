package linker

// runtimeHead opens the chunk. The IIFE receives the module table and the
// link order, loads every module once in that order and caches exports.
const runtimeHead = `(function (modules, order) {
  var cache = {};
  var bale = {
    def: function (exports, name, get) {
      Object.defineProperty(exports, name, { enumerable: true, configurable: true, get: get });
    },
    star: function (exports, mod) {
      Object.keys(mod).forEach(function (name) {
        if (name !== "default" && name !== "__esModule" && !Object.prototype.hasOwnProperty.call(exports, name)) {
          bale.def(exports, name, function () { return mod[name]; });
        }
      });
    },
    interop: function (mod) {
      return mod && mod.__esModule ? mod : { "default": mod };
    }
  };
  function load(key) {
    if (cache[key]) return cache[key].exports;
    var module = cache[key] = { exports: {} };
    var def = modules[key];
    def[0].call(module.exports, module, module.exports, function (spec) {
      var dep = def[1][spec];
      if (dep === undefined) throw new Error("Cannot find module '" + spec + "' from '" + key + "'");
      return dep === null ? {} : load(dep);
    }, bale);
    return module.exports;
  }
  for (var i = 0; i < order.length; i++) load(order[i]);
})({
`

// wrapperHead starts one segment; the parameters are what module code sees.
const wrapperHead = `: [function (module, exports, require, __bale) {
`
